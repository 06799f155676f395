// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recorderBlocks is the number of blocks buffered between the audio
// thread and the WAV writer.
const recorderBlocks = 32

type recordedBlock struct {
	data   []float32 // interleaved
	frames int
}

// Recorder writes interleaved PCM to a WAV file. Write is called from the
// audio thread and never blocks or allocates; encoding happens on a
// separate goroutine. Blocks that arrive while every buffer is in use are
// dropped and counted.
type Recorder struct {
	path      string
	file      *os.File
	encoder   *wav.Encoder
	channels  int
	maxFrames int
	scale     float64
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion

	free  chan []float32
	queue chan recordedBlock
	done  chan struct{}
	exit  chan struct{}

	frames    atomic.Uint64
	dropped   atomic.Uint64
	writeErr  error
	closeOnce sync.Once
	closeErr  error
}

// NewRecorder creates filename and starts the writer. channels is 1 or 2
// and bitDepth one of 16, 24 or 32. Blocks longer than maxFrames are
// dropped.
func NewRecorder(filename string, sampleRate, channels, bitDepth, maxFrames int) (*Recorder, error) {
	switch {
	case channels != 1 && channels != 2:
		return nil, fmt.Errorf("recorder: unsupported channel count %d", channels)
	case bitDepth != 16 && bitDepth != 24 && bitDepth != 32:
		return nil, fmt.Errorf("recorder: unsupported bit depth %d", bitDepth)
	case sampleRate <= 0 || maxFrames <= 0:
		return nil, fmt.Errorf("recorder: invalid sample rate %d or block size %d", sampleRate, maxFrames)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:      filename,
		file:      file,
		encoder:   wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		channels:  channels,
		maxFrames: maxFrames,
		scale:     float64(int64(1)<<(bitDepth-1) - 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, maxFrames*channels),
			SourceBitDepth: bitDepth,
		},
		free:  make(chan []float32, recorderBlocks),
		queue: make(chan recordedBlock, recorderBlocks),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
	for range recorderBlocks {
		r.free <- make([]float32, maxFrames*channels)
	}

	go r.run()
	return r, nil
}

// Path returns the output file name.
func (r *Recorder) Path() string { return r.path }

// Frames returns the number of frames handed to the encoder.
func (r *Recorder) Frames() uint64 { return r.frames.Load() }

// Dropped returns the number of blocks that could not be recorded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Write queues one block. A nil right channel repeats left when recording
// in stereo; a stereo block recorded in mono keeps only left.
func (r *Recorder) Write(left, right []float32) {
	n := len(left)
	if n == 0 {
		return
	}
	if n > r.maxFrames {
		r.dropped.Add(1)
		return
	}

	var data []float32
	select {
	case data = <-r.free:
	default:
		r.dropped.Add(1)
		return
	}

	if r.channels == 1 {
		copy(data, left)
	} else {
		if len(right) < n {
			right = left
		}
		for i := range n {
			data[2*i] = left[i]
			data[2*i+1] = right[i]
		}
	}

	// Every buffer comes from free, so queue always has room.
	select {
	case r.queue <- recordedBlock{data: data, frames: n}:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) run() {
	defer close(r.exit)
	for {
		select {
		case b := <-r.queue:
			r.encode(b)
		case <-r.done:
			for {
				select {
				case b := <-r.queue:
					r.encode(b)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) encode(b recordedBlock) {
	defer func() { r.free <- b.data }()
	if r.writeErr != nil {
		return
	}

	n := b.frames * r.channels
	for i, v := range b.data[:n] {
		r.sampleBuf.Data[i] = int(float64(max(-1, min(1, v))) * r.scale)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:n]

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		r.writeErr = fmt.Errorf("error writing to WAV file: %w", err)
		return
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:cap(r.sampleBuf.Data)]
	r.frames.Add(uint64(b.frames))
}

// Close flushes queued blocks and finalises the WAV header. Writes after
// Close are dropped.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		<-r.exit

		var errs []error
		if r.writeErr != nil {
			errs = append(errs, r.writeErr)
		}
		if err := r.encoder.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := r.file.Close(); err != nil {
			errs = append(errs, err)
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
