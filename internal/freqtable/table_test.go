// SPDX-License-Identifier: MIT
package freqtable

import (
	"errors"
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	table := New()

	if table[0] != BaseFrequency {
		t.Errorf("bin 0 = %v, want %v", table[0], BaseFrequency)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("standard table invalid: %v", err)
	}

	// Every 12 bins is an octave.
	for k := SemitonesPerOctave; k < Bins; k++ {
		ratio := table[k] / table[k-SemitonesPerOctave]
		if math.Abs(ratio-2) > 1e-9 {
			t.Fatalf("bin %d / bin %d = %v, want 2", k, k-SemitonesPerOctave, ratio)
		}
	}

	// A4 is bin 48.
	if math.Abs(table[48]-440) > 1e-9 {
		t.Errorf("bin 48 = %v, want 440", table[48])
	}
}

func TestNewIsDeterministic(t *testing.T) {
	if New() != New() {
		t.Error("two tables differ")
	}
}

func TestFromSlice(t *testing.T) {
	std := New()

	tests := []struct {
		name    string
		freqs   []float64
		wantErr error
	}{
		{"standard", std[:], nil},
		{"too short", std[:129], ErrLength},
		{"too long", append(append([]float64{}, std[:]...), 99999), ErrLength},
		{"empty", nil, ErrLength},
		{"negative", withValue(std, 3, -1), ErrNotPositive},
		{"nan", withValue(std, 10, math.NaN()), ErrNotPositive},
		{"not increasing", withValue(std, 5, std[4]), ErrNotSorted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSlice(tt.freqs)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNyquist(t *testing.T) {
	table := New()

	n := table.Nyquist(48000)
	if n == 0 || n == Bins {
		t.Fatalf("Nyquist(48000) = %d", n)
	}
	if table[n] < 24000 || table[n-1] >= 24000 {
		t.Errorf("bin %d (%v) is not the first bin at or above 24 kHz", n, table[n])
	}
	if got := table.Nyquist(1e9); got != Bins {
		t.Errorf("Nyquist(1e9) = %d, want %d", got, Bins)
	}
}

func TestNoteName(t *testing.T) {
	tests := map[int]string{0: "A0", 3: "C1", 48: "A4", 51: "C5", 129: "F#11"}
	for k, want := range tests {
		if got := NoteName(k); got != want {
			t.Errorf("NoteName(%d) = %q, want %q", k, got, want)
		}
	}
}

func withValue(t Table, k int, v float64) []float64 {
	out := append([]float64{}, t[:]...)
	out[k] = v
	return out
}
