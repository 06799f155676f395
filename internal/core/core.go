// SPDX-License-Identifier: MIT

// Package core defines the contract of the numeric transform core and the
// two ways of obtaining one: the built-in reference core and a native
// library loaded at runtime.
//
// Every invocation passes the whole shared region plus an explicit span for
// each of the five slices. The host keeps ownership of the memory; a core
// only borrows it for the duration of one Transform call and writes its
// results in place.
package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"spectral/internal/arena"
	"spectral/internal/freqtable"
)

const (
	// FloorDB is reported for bins with no measurable energy, including
	// digital silence and bins at or above Nyquist.
	FloorDB = -100.0

	// NeutralPan is the pan angle of a centred or silent bin, in radians.
	// Angles range from -Pi/4 (left only) to +Pi/4 (right only).
	NeutralPan = 0.0

	// MaxPan is the magnitude of a hard-panned bin.
	MaxPan = math.Pi / 4
)

var (
	ErrInvalidArgs         = errors.New("invalid transform arguments")
	ErrMissingExport       = errors.New("numeric core export not found")
	ErrLibrary             = errors.New("numeric core library could not be loaded")
	ErrUnsupportedPlatform = errors.New("native numeric core not supported on this platform")
)

// Args describes one invocation: where each slice lives in the region and
// the sample rate of the block.
type Args struct {
	Left        arena.Span
	Right       arena.Span
	Frequencies arena.Span
	DBLevels    arena.Span
	PanAngles   arena.Span
	SampleRate  float32
}

// NewArgs builds the arguments for a block of frames samples per channel.
func NewArgs(layout arena.Layout, frames int, sampleRate float32) Args {
	left := layout.Span(arena.InputLeft)
	right := layout.Span(arena.InputRight)
	left.Len = frames
	right.Len = frames
	return Args{
		Left:        left,
		Right:       right,
		Frequencies: layout.Span(arena.TargetFrequencies),
		DBLevels:    layout.Span(arena.OutputDBLevels),
		PanAngles:   layout.Span(arena.OutputPanAngles),
		SampleRate:  sampleRate,
	}
}

// Validate checks the arguments against a region of size elements.
func (a Args) Validate(size int) error {
	spans := [...]struct {
		name string
		span arena.Span
	}{
		{"left", a.Left},
		{"right", a.Right},
		{"frequencies", a.Frequencies},
		{"dbLevels", a.DBLevels},
		{"panAngles", a.PanAngles},
	}
	for _, s := range spans {
		if !s.span.Within(size) {
			return fmt.Errorf("%w: %s span %+v outside region of %d", ErrInvalidArgs, s.name, s.span, size)
		}
	}

	switch {
	case a.Left.Len == 0 || a.Left.Len != a.Right.Len:
		return fmt.Errorf("%w: channel lengths %d/%d", ErrInvalidArgs, a.Left.Len, a.Right.Len)
	case a.Frequencies.Len != freqtable.Bins:
		return fmt.Errorf("%w: %d frequencies", ErrInvalidArgs, a.Frequencies.Len)
	case a.DBLevels.Len != 2*a.Frequencies.Len:
		return fmt.Errorf("%w: %d dB levels for %d bins", ErrInvalidArgs, a.DBLevels.Len, a.Frequencies.Len)
	case a.PanAngles.Len != a.Frequencies.Len:
		return fmt.Errorf("%w: %d pan angles for %d bins", ErrInvalidArgs, a.PanAngles.Len, a.Frequencies.Len)
	case !(a.SampleRate > 0) || math.IsInf(float64(a.SampleRate), 0):
		return fmt.Errorf("%w: sample rate %v", ErrInvalidArgs, a.SampleRate)
	}
	return nil
}

// Core is a deterministic transform from two channels of samples, a sample
// rate and the target frequencies to 260 dB levels and 130 pan angles.
// Implementations write their results into the region and must not retain
// mem after returning. A Core is only ever called from one goroutine.
type Core interface {
	Name() string
	Transform(mem []float32, args Args) error
}

// Loader acquires a Core. Loading may be slow; callers run it off the
// audio thread.
type Loader interface {
	Load(ctx context.Context) (Core, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Core, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (Core, error) { return f(ctx) }
