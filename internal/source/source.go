// SPDX-License-Identifier: MIT

// Package source decodes audio files into float32 samples for the offline
// analyzer and the file player. WAV, MP3 and Ogg Vorbis are supported.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidDstSize    = errors.New("dst size must be a multiple of the channel count")
	ErrNoChannels        = errors.New("stream has no channels")
)

// Source yields interleaved float32 samples in [-1, 1].
type Source interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number
	// of samples written. len(dst) must be a multiple of Channels. At the
	// end of the stream it returns 0, io.EOF.
	ReadSamples(dst []float32) (int, error)
	Close() error
}

// Decoder opens a Source over an encoded stream.
type Decoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

// Registry maps file extensions to decoders.
type Registry map[string]Decoder

// DefaultRegistry knows every built-in format.
var DefaultRegistry = Registry{
	".wav":  WAVDecoder{},
	".wave": WAVDecoder{},
	".mp3":  MP3Decoder{},
	".ogg":  VorbisDecoder{},
	".oga":  VorbisDecoder{},
}

// Open decodes the file at path with the DefaultRegistry.
func Open(path string) (Source, error) {
	return DefaultRegistry.Open(path)
}

// Open decodes the file at path, choosing the decoder by extension. The
// returned Source closes the file.
func (reg Registry) Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := reg[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := dec.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if src.Channels() < 1 {
		f.Close()
		return nil, ErrNoChannels
	}
	return &fileSource{Source: src, f: f}, nil
}

type fileSource struct {
	Source
	f *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.f.Close())
}
