// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// mp3Reader is the part of gomp3.Decoder the source uses.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

// MP3Decoder decodes MPEG-1/2 Layer III files. The output is always
// stereo.
type MP3Decoder struct{}

// Decode implements Decoder.
func (MP3Decoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return newMP3Source(dec), nil
}

func newMP3Source(dec mp3Reader) *mp3Source {
	return &mp3Source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		buf:        make([]byte, 8192),
	}
}

type mp3Source struct {
	dec        mp3Reader
	sampleRate int
	buf        []byte
}

func (s *mp3Source) SampleRate() int { return s.sampleRate }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	if len(dst)%2 != 0 {
		return 0, ErrInvalidDstSize
	}
	// go-mp3 produces 16-bit little-endian interleaved stereo.
	need := len(dst) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	n, err := io.ReadFull(s.dec, s.buf)
	samples := n / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(s.buf[2*i:]))) / 32768
	}

	switch {
	case err == io.ErrUnexpectedEOF:
		// Round down to whole frames.
		return samples &^ 1, nil
	case err == io.EOF:
		return 0, io.EOF
	case err != nil:
		return samples &^ 1, fmt.Errorf("mp3: %w", err)
	}
	return samples, nil
}
