// SPDX-License-Identifier: MIT

/*
Package bitint provides the integer helpers used to size and align the
shared sample region.

All functions are O(1), allocation free and safe to call from the audio
callback, although in practice they only run while a pipeline is built.

Usage:

	// Round a requested quantum capacity up to a power of two.
	capacity := bitint.NextPowerOfTwo(300) // 512

	// Place a slice on a 16-element boundary.
	offset := bitint.AlignUp(130, 16) // 144
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= n. Values <= 0
// return 1.
//
// The subtraction keeps exact powers of two unchanged: for n=8,
// bits.Len(7) = 3 and 1<<3 = 8, whereas bits.Len(8) would give 16.
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// AlignUp rounds n up to the next multiple of align. align must be a power
// of two; any other value returns n unchanged.
func AlignUp(n, align int) int {
	if !IsPowerOfTwo(align) {
		return n
	}
	mask := align - 1
	return (n + mask) &^ mask
}
