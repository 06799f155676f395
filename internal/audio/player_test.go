// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"spectral/internal/pipeline"
	"spectral/internal/source"
	"spectral/pkg/utils"
)

// memSource serves interleaved samples from memory.
type memSource struct {
	rate     int
	channels int
	data     []float32
	pos      int
}

func (s *memSource) SampleRate() int { return s.rate }
func (s *memSource) Channels() int   { return s.channels }
func (s *memSource) Close() error    { return nil }

func (s *memSource) ReadSamples(dst []float32) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// failingSource returns err after the first read.
type failingSource struct {
	memSource
	err error
}

func (s *failingSource) ReadSamples(dst []float32) (int, error) {
	if s.pos > 0 {
		return 0, s.err
	}
	return s.memSource.ReadSamples(dst)
}

func TestFilePlayerRead(t *testing.T) {
	left := utils.SineWave(300, testSampleRate, 440, 0.5)
	right := utils.SineWave(300, testSampleRate, 660, 0.5)
	src := &memSource{rate: testSampleRate, channels: 2, data: utils.Interleave(left, right)}

	var blocks []int
	proc := procFunc(func(l, r, ol, or []float32) {
		blocks = append(blocks, len(l))
		copy(ol, l)
		copy(or, r)
	})
	fp := NewFilePlayer(source.NewStream(src, testFrameSize), proc, testFrameSize)

	var out []byte
	p := make([]byte, 1000)
	for {
		n, err := fp.Read(p)
		out = append(out, p[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if len(out) != 300*bytesPerFrame {
		t.Fatalf("read %d bytes, want %d", len(out), 300*bytesPerFrame)
	}
	for i := range 300 {
		l := math.Float32frombits(binary.LittleEndian.Uint32(out[i*bytesPerFrame:]))
		r := math.Float32frombits(binary.LittleEndian.Uint32(out[i*bytesPerFrame+4:]))
		if l != left[i] || r != right[i] {
			t.Fatalf("frame %d = (%v, %v), want (%v, %v)", i, l, r, left[i], right[i])
		}
	}
	if want := []int{128, 128, 44}; len(blocks) != 3 || blocks[0] != want[0] || blocks[2] != want[2] {
		t.Errorf("block sizes = %v, want %v", blocks, want)
	}
	if fp.Frames() != 300 {
		t.Errorf("Frames() = %d, want 300", fp.Frames())
	}
}

func TestFilePlayerMonoUsesPipelinePassThrough(t *testing.T) {
	h := newHost(t, nil)
	mono := utils.SineWave(64, testSampleRate, 440, 0.5)
	src := &memSource{rate: testSampleRate, channels: 1, data: mono}
	fp := NewFilePlayer(source.NewStream(src, testFrameSize), h.Processor(), testFrameSize)

	p := make([]byte, 64*bytesPerFrame)
	n, err := io.ReadFull(fp, p)
	if err != nil || n != len(p) {
		t.Fatalf("ReadFull = %d, %v", n, err)
	}
	for i := range 64 {
		l := math.Float32frombits(binary.LittleEndian.Uint32(p[i*bytesPerFrame:]))
		r := math.Float32frombits(binary.LittleEndian.Uint32(p[i*bytesPerFrame+4:]))
		if l != mono[i] || r != mono[i] {
			t.Fatalf("frame %d = (%v, %v), want %v on both sides", i, l, r, mono[i])
		}
	}
	if got := h.Processor().Stats().Processed; got != 1 {
		t.Errorf("processed = %d, want 1", got)
	}
}

func TestFilePlayerSourceError(t *testing.T) {
	boom := errors.New("corrupt frame")
	src := &failingSource{
		memSource: memSource{rate: testSampleRate, channels: 2, data: make([]float32, 2*testFrameSize)},
		err:       boom,
	}
	fp := NewFilePlayer(source.NewStream(src, testFrameSize), procFunc(func(_, _, _, _ []float32) {}), testFrameSize)

	p := make([]byte, 4*testFrameSize*bytesPerFrame)
	var err error
	for range 4 {
		if _, err = fp.Read(p); err != nil {
			break
		}
	}
	if !errors.Is(err, boom) {
		t.Errorf("Read error = %v, want %v", err, boom)
	}
}

func TestDriveDeliversEveryBlock(t *testing.T) {
	var results []pipeline.Result
	h := newHost(t, pipeline.ConsumerFunc(func(r pipeline.Result) error {
		results = append(results, r)
		return nil
	}), pipeline.WithResultQueue(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	const frames = 10*testFrameSize + 7
	src := &memSource{
		rate:     testSampleRate,
		channels: 2,
		data:     utils.Interleave(utils.ComplexWave(frames, testSampleRate), utils.Noise(frames, 3)),
	}

	total, err := Drive(ctx, source.NewStream(src, testFrameSize), h.Processor(), testFrameSize)
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if total != frames {
		t.Errorf("Drive processed %d frames, want %d", total, frames)
	}
	if err := h.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done

	if len(results) != 11 {
		t.Fatalf("got %d results, want 11", len(results))
	}
	if s := h.Processor().Stats(); s.Dropped != 0 {
		t.Errorf("%d results dropped", s.Dropped)
	}
	if results[10].Frames != 7 {
		t.Errorf("last block has %d frames, want 7", results[10].Frames)
	}
}

func TestDriveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &memSource{rate: testSampleRate, channels: 2, data: make([]float32, 1024)}
	_, err := Drive(ctx, source.NewStream(src, testFrameSize), procFunc(func(_, _, _, _ []float32) {}), testFrameSize)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Drive = %v, want context.Canceled", err)
	}
}
