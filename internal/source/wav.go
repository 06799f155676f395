// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrNotWavFile = errors.New("not a valid wav file")

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xfffe
)

// WAVDecoder decodes PCM WAV files of any bit depth.
type WAVDecoder struct{}

// Decode implements Decoder.
func (WAVDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if dec.NumChans == 0 || dec.BitDepth == 0 {
		return nil, ErrNotWavFile
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: wav format 0x%x", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	// 8-bit PCM is unsigned.
	offset := 0
	if dec.BitDepth == 8 {
		offset = 128
	}

	return &wavSource{
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		scale:      float32(int64(1) << (dec.BitDepth - 1)),
		offset:     offset,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:   make([]int, 4096),
		},
	}, nil
}

type wavSource struct {
	dec        *wav.Decoder
	sampleRate int
	channels   int
	scale      float32
	offset     int
	buf        *audio.IntBuffer
}

func (s *wavSource) SampleRate() int { return s.sampleRate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return 0, io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("wav: %w", err)
	}
	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v-s.offset) / s.scale
	}
	return n, nil
}
