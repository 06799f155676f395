// SPDX-License-Identifier: MIT

// Package udp publishes pipeline results as compact binary datagrams for
// renderers that prefer UDP over WebSocket.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"spectral/internal/arena"
	applog "spectral/internal/log"
	"spectral/internal/pipeline"
)

// ValueCount is the number of float32 values in every packet: the dB
// levels of both channels followed by the pan angles.
const ValueCount = arena.DBLevels + arena.PanAngles

// HeaderSize is the size of the packet header in bytes.
const HeaderSize = 4 + 8 + 8 + 2

// PacketSize is the size of a complete packet in bytes.
const PacketSize = HeaderSize + ValueCount*4

// UDPPublisher keeps the latest result and sends it at a fixed interval.
// Results that arrive faster than the interval are coalesced: only the
// newest is sent, older ones are never queued.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	latestMu sync.Mutex
	latest   pipeline.Result
	pending  bool

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Reused on every tick.
	current      pipeline.Result
	values       []float32
	packetBuffer *bytes.Buffer
	log          applog.Logger
}

// NewUDPPublisher creates a publisher. If the interval is invalid (<= 0)
// it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}

	l := applog.For("udp")
	if interval <= 0 {
		interval = 16 * time.Millisecond
		l.Warnf("invalid interval, defaulting to %s", interval)
	}

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		values:       make([]float32, ValueCount),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
		log:          l,
	}, nil
}

// Send stores a result for the next tick. Other messages are ignored.
func (p *UDPPublisher) Send(data any) error {
	switch v := data.(type) {
	case pipeline.Result:
		p.latestMu.Lock()
		p.latest = v
		p.pending = true
		p.latestMu.Unlock()
	case pipeline.ErrorMessage:
		// The binary protocol has no error packet.
	default:
		return fmt.Errorf("UDPPublisher: unsupported message %T", data)
	}
	return nil
}

// Start begins the periodic publishing process. Subsequent calls are
// no-ops while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Infof("publishing every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

/*
UDP Packet Structure (BigEndian)

|<-- 4 Bytes -->|<--- 8 Bytes --->|<--- 8 Bytes --->|<- 2 Bytes ->|<----- 390 * 4 Bytes ----->|
+---------------+-----------------+-----------------+-------------+---------------------------+
|   Sequence    |    Timestamp    |  Result Seq     | Value Count | dB levels L, dB levels R, |
|   (uint32)    | (int64, ns UTC) |   (uint64)      |  (uint16)   | pan angles (float32)      |
+---------------+-----------------+-----------------+-------------+---------------------------+
*/

// buildAndSendPacket sends the newest result, if one arrived since the last
// tick.
func (p *UDPPublisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.pending {
		p.latestMu.Unlock()
		return
	}
	p.current = p.latest
	p.pending = false
	p.latestMu.Unlock()

	copy(p.values, p.current.DBLevels[:])
	copy(p.values[arena.DBLevels:], p.current.PanAngles[:])

	p.sequenceNum++
	if err := encodePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), p.current.Seq, p.values); err != nil {
		p.log.Errorf("packing packet %d: %v", p.sequenceNum, err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		p.log.Debugf("packet %d: %v", p.sequenceNum, err)
		return
	}
	p.log.Debugf("sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
}

func encodePacket(buf *bytes.Buffer, seq uint32, timestamp int64, resultSeq uint64, values []float32) error {
	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, resultSeq)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(values)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, values)
	}
	return err
}

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	ResultSeq uint64
	DBLevels  [arena.DBLevels]float32
	PanAngles [arena.PanAngles]float32
}

// DecodePacket parses a datagram produced by the publisher.
func DecodePacket(data []byte) (Packet, error) {
	var pkt Packet
	if len(data) < HeaderSize {
		return pkt, errors.New("udp: short packet")
	}
	r := bytes.NewReader(data)
	var count uint16
	for _, v := range []any{&pkt.Seq, &pkt.Timestamp, &pkt.ResultSeq, &count} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return pkt, err
		}
	}
	if count != ValueCount {
		return pkt, fmt.Errorf("udp: %d values, want %d", count, ValueCount)
	}
	if err := binary.Read(r, binary.BigEndian, pkt.DBLevels[:]); err != nil {
		return pkt, err
	}
	if err := binary.Read(r, binary.BigEndian, pkt.PanAngles[:]); err != nil {
		return pkt, err
	}
	return pkt, nil
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

// Ensure UDPPublisher can be used as a transport.
var _ interface {
	Send(any) error
	Close() error
} = (*UDPPublisher)(nil)
