// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"spectral/internal/source"
)

const (
	playbackChannels = 2
	bytesPerFrame    = playbackChannels * 4 // float32 LE
	playerPoll       = 20 * time.Millisecond
)

// Backlogged is implemented by block processors that queue results.
type Backlogged interface {
	Backlog() int
}

// FilePlayer feeds decoded blocks to a processor and hands the
// passed-through audio to oto as interleaved float32 stereo. oto pulls
// from Read on its own goroutine, so the processor sees blocks at the
// playback rate.
type FilePlayer struct {
	stream *source.Stream
	proc   BlockProcessor

	left, right       []float32
	outLeft, outRight []float32
	pending           []byte // encoded frames not yet returned by Read
	buf               []byte
	err               error

	frames atomic.Uint64
}

// NewFilePlayer reads stream in blocks of blockFrames frames.
func NewFilePlayer(stream *source.Stream, proc BlockProcessor, blockFrames int) *FilePlayer {
	return &FilePlayer{
		stream:   stream,
		proc:     proc,
		left:     make([]float32, blockFrames),
		right:    make([]float32, blockFrames),
		outLeft:  make([]float32, blockFrames),
		outRight: make([]float32, blockFrames),
		buf:      make([]byte, blockFrames*bytesPerFrame),
	}
}

// Frames returns the number of frames processed so far.
func (fp *FilePlayer) Frames() uint64 { return fp.frames.Load() }

// Read implements io.Reader for oto.
func (fp *FilePlayer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(fp.pending) == 0 {
			if fp.err != nil {
				break
			}
			fp.next()
			continue
		}
		c := copy(p[n:], fp.pending)
		fp.pending = fp.pending[c:]
		n += c
	}
	if n == 0 {
		return 0, fp.err
	}
	return n, nil
}

// next processes one block into pending.
func (fp *FilePlayer) next() {
	frames, err := fp.stream.ReadBlock(fp.left, fp.right)
	if err != nil {
		fp.err = err
		return
	}

	var right []float32
	if fp.stream.Stereo() {
		right = fp.right[:frames]
	}
	fp.proc.Process(fp.left[:frames], right, fp.outLeft[:frames], fp.outRight[:frames])
	fp.frames.Add(uint64(frames))

	out := fp.buf[:frames*bytesPerFrame]
	for i := range frames {
		binary.LittleEndian.PutUint32(out[i*bytesPerFrame:], math.Float32bits(fp.outLeft[i]))
		binary.LittleEndian.PutUint32(out[i*bytesPerFrame+4:], math.Float32bits(fp.outRight[i]))
	}
	fp.pending = out
}

// Play plays fp through the default output device until the stream ends
// or ctx is done.
func Play(ctx context.Context, fp *FilePlayer, sampleRate int) error {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: playbackChannels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return err
	}
	<-ready

	player := otoCtx.NewPlayer(fp)
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(playerPoll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if fp.err != nil && !errors.Is(fp.err, io.EOF) {
		return fp.err
	}
	return nil
}

// Drive feeds stream to proc as fast as the processor keeps up. When proc
// reports a backlog, Drive waits for it to drain after each block so no
// result is dropped. It returns the number of frames processed.
func Drive(ctx context.Context, stream *source.Stream, proc BlockProcessor, blockFrames int) (uint64, error) {
	left := make([]float32, blockFrames)
	right := make([]float32, blockFrames)
	backlog, paced := proc.(Backlogged)

	var total uint64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := stream.ReadBlock(left, right)
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		var r []float32
		if stream.Stereo() {
			r = right[:n]
		}
		proc.Process(left[:n], r, nil, nil)
		total += uint64(n)

		for paced && backlog.Backlog() > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(50 * time.Microsecond):
			}
		}
	}
}
