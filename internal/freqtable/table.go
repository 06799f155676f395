// SPDX-License-Identifier: MIT

// Package freqtable builds the fixed set of analysis frequencies: 130
// equal-tempered semitones starting at A0 (27.5 Hz).
package freqtable

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Bins is the number of semitone bins analysed per block.
	Bins = 130

	// BaseFrequency is the frequency of bin 0 (A0) in Hz.
	BaseFrequency = 27.5

	// SemitonesPerOctave sets the spacing of the table.
	SemitonesPerOctave = 12
)

var (
	ErrLength      = errors.New("frequency table must have exactly 130 entries")
	ErrNotPositive = errors.New("frequency table entries must be finite and positive")
	ErrNotSorted   = errors.New("frequency table must be strictly increasing")
)

// Table holds the target frequencies in Hz, lowest first. It is a value
// type: copies are independent and nothing can resize it.
type Table [Bins]float64

// New returns the standard table, f(k) = 27.5 * 2^(k/12).
func New() Table {
	var t Table
	for k := range t {
		t[k] = Frequency(k)
	}
	return t
}

// Frequency returns the centre frequency of semitone bin k.
func Frequency(k int) float64 {
	return BaseFrequency * math.Exp2(float64(k)/SemitonesPerOctave)
}

// FromSlice validates freqs and converts it to a Table. Tables of the wrong
// length are rejected rather than truncated or padded.
func FromSlice(freqs []float64) (Table, error) {
	var t Table
	if len(freqs) != Bins {
		return t, fmt.Errorf("%w: got %d", ErrLength, len(freqs))
	}
	copy(t[:], freqs)
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks that every entry is finite, positive and larger than
// the previous one.
func (t Table) Validate() error {
	prev := 0.0
	for k, f := range t {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: bin %d = %v", ErrNotPositive, k, f)
		}
		if f <= prev {
			return fmt.Errorf("%w: bin %d (%v) <= bin %d (%v)", ErrNotSorted, k, f, k-1, prev)
		}
		prev = f
	}
	return nil
}

// Float32 returns the table in the precision used by the shared region.
func (t Table) Float32() [Bins]float32 {
	var out [Bins]float32
	for k, f := range t {
		out[k] = float32(f)
	}
	return out
}

// Nyquist returns the index of the first bin at or above sampleRate/2, or
// Bins when every bin is below it.
func (t Table) Nyquist(sampleRate float64) int {
	limit := sampleRate / 2
	for k, f := range t {
		if f >= limit {
			return k
		}
	}
	return Bins
}

// NoteName returns the scientific pitch name of bin k ("A0", "C#4", ...).
func NoteName(k int) string {
	names := [...]string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#"}
	if k < 0 {
		return ""
	}
	// Octave numbers change at C, three semitones above A.
	octave := (k + 9) / SemitonesPerOctave
	return fmt.Sprintf("%s%d", names[k%SemitonesPerOctave], octave)
}
