// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"math"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 48000
)

func TestMockTransport(t *testing.T) {
	tests := []struct {
		name  string
		input []any
	}{
		{"Nothing", nil},
		{"Single Value", []any{0.5}},
		{"Mixed Values", []any{"a", 1, []float32{0.1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := &MockTransport{}
			for _, v := range tt.input {
				if err := mt.Send(v); err != nil {
					t.Fatalf("Send() error = %v", err)
				}
			}
			if got := mt.Sent(); len(got) != len(tt.input) {
				t.Errorf("Sent() has %d values, want %d", len(got), len(tt.input))
			}
		})
	}
}

func TestMockTransportError(t *testing.T) {
	want := errors.New("offline")
	mt := &MockTransport{Err: want}
	if err := mt.Send(1); !errors.Is(err, want) {
		t.Errorf("Send() = %v, want %v", err, want)
	}
	if len(mt.Sent()) != 0 {
		t.Error("failed send was recorded")
	}
	_ = mt.Close()
	if !mt.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestSineWave(t *testing.T) {
	wave := SineWave(testSize, testSampleRate, 440, 0.5)
	if len(wave) != testSize {
		t.Fatalf("len = %d, want %d", len(wave), testSize)
	}

	var peak float64
	for _, s := range wave {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak > 0.5+1e-6 || peak < 0.49 {
		t.Errorf("peak = %v, want ~0.5", peak)
	}
	if wave[0] != 0 {
		t.Errorf("sine does not start at zero: %v", wave[0])
	}
}

func TestComplexWaveBelowFullScale(t *testing.T) {
	for i, s := range ComplexWave(testSize, testSampleRate) {
		if math.Abs(float64(s)) >= 1 {
			t.Fatalf("sample %d = %v clips", i, s)
		}
	}
}

func TestNoiseDeterministic(t *testing.T) {
	a := Noise(testSize, 42)
	b := Noise(testSize, 42)
	c := Noise(testSize, 43)

	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed differs at %d", i)
		}
		if a[i] < -1 || a[i] >= 1 {
			t.Fatalf("sample %d = %v out of range", i, a[i])
		}
		same = same && a[i] == c[i]
	}
	if same {
		t.Error("different seeds produced identical noise")
	}
}

func TestInterleave(t *testing.T) {
	got := Interleave([]float32{1, 2}, []float32{3, 4})
	want := []float32{1, 3, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Interleave = %v, want %v", got, want)
		}
	}
}

func TestPeakBin(t *testing.T) {
	values := []float32{0, 1, 5, 2, 9, 3}
	tests := []struct {
		start, end, want int
	}{
		{0, 5, 4},
		{0, 3, 2},
		{-3, 100, 4},
		{5, 5, 5},
	}
	for _, tt := range tests {
		if got := PeakBin(values, tt.start, tt.end); got != tt.want {
			t.Errorf("PeakBin(%d, %d) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
	if PeakBin(nil, 0, 3) != 0 {
		t.Error("PeakBin(nil) != 0")
	}
}
