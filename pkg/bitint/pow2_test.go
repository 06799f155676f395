// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // Smallest power
		{8, 8},       // Already power of two
		{128, 128},   // Common render quantum
		{300, 512},   // Not power of two
		{1000, 1024}, // Large number
		{8193, 16384},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := NextPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-8, false},
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{128, true},
		{130, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.expected)
			}
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, expected int
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{130, 16, 144},
		{260, 16, 272},
		{130, 12, 130}, // Not a power of two, unchanged
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.align), func(t *testing.T) {
			if got := AlignUp(tt.n, tt.align); got != tt.expected {
				t.Errorf("AlignUp(%d, %d) = %d, expected %d", tt.n, tt.align, got, tt.expected)
			}
		})
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_ = NextPowerOfTwo(1000)
	}
}
