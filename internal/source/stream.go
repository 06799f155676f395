// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"io"
)

// Stream splits a Source into left and right channel blocks. Channels
// beyond the second are ignored.
type Stream struct {
	src      Source
	channels int
	buf      []float32
	eof      bool
}

// NewStream wraps src for blocks of up to frames frames.
func NewStream(src Source, frames int) *Stream {
	ch := max(src.Channels(), 1)
	return &Stream{
		src:      src,
		channels: ch,
		buf:      make([]float32, frames*ch),
	}
}

// Stereo reports whether the source has a right channel.
func (s *Stream) Stereo() bool { return s.channels > 1 }

// SampleRate returns the source sample rate.
func (s *Stream) SampleRate() int { return s.src.SampleRate() }

// ReadBlock fills left and, for stereo sources, right with up to len(left)
// frames. It returns the number of frames read; a short block is returned
// only at the end of the stream, after which it returns 0, io.EOF.
func (s *Stream) ReadBlock(left, right []float32) (int, error) {
	frames := min(len(left), len(s.buf)/s.channels)
	if s.Stereo() {
		frames = min(frames, len(right))
	}
	want := frames * s.channels

	got := 0
	for got < want && !s.eof {
		n, err := s.src.ReadSamples(s.buf[got:want])
		got += n
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			// A decoder that makes no progress is treated as exhausted.
			s.eof = true
		}
	}

	frames = got / s.channels
	if frames == 0 && s.eof {
		return 0, io.EOF
	}
	for i := range frames {
		base := i * s.channels
		left[i] = s.buf[base]
		if s.Stereo() {
			right[i] = s.buf[base+1]
		}
	}
	return frames, nil
}

// Close closes the source.
func (s *Stream) Close() error { return s.src.Close() }
