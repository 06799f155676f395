// SPDX-License-Identifier: MIT

// Package utils holds helpers shared by the test suites: deterministic test
// signals and a transport that records what it is sent.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// MockTransport implements the transport interface for testing. It keeps
// every value it receives, in order.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
	Err    error // returned by Send when set
}

// Send records data instead of transmitting it.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SineWave returns size samples of a sine at frequency Hz and the given
// peak amplitude.
func SineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// ComplexWave returns a 440Hz fundamental plus two harmonics, peaking
// below full scale.
func ComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Noise returns size samples of uniform white noise in [-1, 1). The same
// seed always produces the same samples.
func Noise(size int, seed int64) []float32 {
	r := rand.New(rand.NewPCG(uint64(seed), 0x5eed))
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = float32(r.Float64()*2 - 1)
	}
	return buffer
}

// Interleave merges two channels into one interleaved buffer.
func Interleave(left, right []float32) []float32 {
	out := make([]float32, 2*len(left))
	for i := range left {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out
}

// PeakBin returns the index of the largest value in values[start:end+1].
func PeakBin(values []float32, start, end int) int {
	if len(values) == 0 {
		return 0
	}
	start = max(start, 0)
	end = min(end, len(values)-1)

	peak := start
	for i := start + 1; i <= end; i++ {
		if values[i] > values[peak] {
			peak = i
		}
	}
	return peak
}
