// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"spectral/internal/pipeline"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublisherSendsLatestResult(t *testing.T) {
	ln := listen(t)
	sender, err := NewUDPSender(ln.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	pub, err := NewUDPPublisher(5*time.Millisecond, sender)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	// Both arrive before the first tick; only the newer is sent.
	older := pipeline.Result{Seq: 1}
	newer := pipeline.Result{Seq: 2}
	newer.DBLevels[0] = -6
	newer.DBLevels[259] = -12
	newer.PanAngles[129] = 0.25
	_ = pub.Send(older)
	_ = pub.Send(newer)
	pub.Start()

	buf := make([]byte, 2*PacketSize)
	_ = ln.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := ln.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != PacketSize {
		t.Fatalf("packet is %d bytes, want %d", n, PacketSize)
	}

	pkt, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Seq != 1 || pkt.ResultSeq != 2 {
		t.Errorf("seq = %d, result seq = %d", pkt.Seq, pkt.ResultSeq)
	}
	if pkt.DBLevels[0] != -6 || pkt.DBLevels[259] != -12 || pkt.PanAngles[129] != 0.25 {
		t.Errorf("payload mismatch: %v %v %v", pkt.DBLevels[0], pkt.DBLevels[259], pkt.PanAngles[129])
	}

	// Nothing new: no further packets.
	_ = ln.SetReadDeadline(time.Now().Add(30 * time.Millisecond))
	if _, err := ln.Read(buf); err == nil {
		t.Error("publisher resent a result it had already sent")
	}
}

func TestPublisherRejectsUnknownMessages(t *testing.T) {
	ln := listen(t)
	sender, _ := NewUDPSender(ln.LocalAddr().String())
	pub, _ := NewUDPPublisher(0, sender)
	defer pub.Close()

	if err := pub.Send("text"); err == nil {
		t.Error("string accepted")
	}
	if err := pub.Send(pipeline.ErrorMessage{}); err != nil {
		t.Errorf("error message rejected: %v", err)
	}
	if pub.interval != 16*time.Millisecond {
		t.Errorf("interval = %s, want default", pub.interval)
	}
}

func TestPublisherStartStop(t *testing.T) {
	ln := listen(t)
	sender, _ := NewUDPSender(ln.LocalAddr().String())
	pub, _ := NewUDPPublisher(time.Millisecond, sender)

	pub.Start()
	pub.Start()
	if err := pub.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := pub.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := pub.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send([]byte{1}); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestNewUDPPublisherNilSender(t *testing.T) {
	if _, err := NewUDPPublisher(time.Millisecond, nil); err == nil {
		t.Error("nil sender accepted")
	}
}

func TestDecodePacketErrors(t *testing.T) {
	if _, err := DecodePacket([]byte{1, 2, 3}); err == nil {
		t.Error("short packet accepted")
	}
	header := make([]byte, HeaderSize)
	if _, err := DecodePacket(header); err == nil {
		t.Error("packet with zero values accepted")
	}
}
