// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// oggReader is the part of oggvorbis.Reader the source uses.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

// VorbisDecoder decodes Ogg Vorbis files.
type VorbisDecoder struct{}

// Decode implements Decoder.
func (VorbisDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	return &vorbisSource{dec: dec}, nil
}

type vorbisSource struct {
	dec oggReader
}

func (s *vorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int   { return s.dec.Channels() }
func (s *vorbisSource) Close() error    { return nil }

func (s *vorbisSource) ReadSamples(dst []float32) (int, error) {
	ch := s.dec.Channels()
	if ch < 1 || len(dst)%ch != 0 {
		return 0, ErrInvalidDstSize
	}
	// Read fills whole frames and returns the number of values written.
	n, err := s.dec.Read(dst)
	if n == 0 && err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("vorbis: %w", err)
	}
	return n, nil
}
