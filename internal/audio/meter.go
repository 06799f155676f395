// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"

	"spectral/internal/core"
)

// DefaultClipThreshold is the absolute sample value counted as clipping.
const DefaultClipThreshold = 0.999

const signMask = 1 << 31

// Meter tracks the input peak on the audio thread and lets the control
// plane read it without locks. The zero value meters but never counts
// clips.
type Meter struct {
	peak          atomic.Uint32 // float32 bits of the peak since the last TakePeak
	clipThreshold atomic.Uint32 // float32 bits, 0 disables clip counting
	clipped       atomic.Uint64 // blocks containing at least one clipped sample
}

// SetClipThreshold sets the clip level (0.0 to 1.0). Values outside the
// range are clamped; 0 disables clip counting.
func (m *Meter) SetClipThreshold(threshold float64) {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	m.clipThreshold.Store(math.Float32bits(float32(threshold)))
}

// ClipThreshold returns the clip level.
func (m *Meter) ClipThreshold() float64 {
	return float64(math.Float32frombits(m.clipThreshold.Load()))
}

// Observe folds one block into the peak. It does not allocate.
func (m *Meter) Observe(left, right []float32) {
	// Non-negative float32 values order the same as their bit patterns.
	var peak uint32
	for _, v := range left {
		peak = max(peak, math.Float32bits(v)&^signMask)
	}
	for _, v := range right {
		peak = max(peak, math.Float32bits(v)&^signMask)
	}

	if th := m.clipThreshold.Load(); th != 0 && peak >= th {
		m.clipped.Add(1)
	}

	for {
		old := m.peak.Load()
		if peak <= old || m.peak.CompareAndSwap(old, peak) {
			return
		}
	}
}

// TakePeak returns the peak absolute sample since the previous call and
// resets it.
func (m *Meter) TakePeak() float32 {
	return math.Float32frombits(m.peak.Swap(0))
}

// Clipped returns the number of blocks that reached the clip threshold.
func (m *Meter) Clipped() uint64 { return m.clipped.Load() }

// DBFS converts a peak to decibels relative to full scale, floored at
// core.FloorDB.
func DBFS(peak float32) float64 {
	if peak <= 0 {
		return core.FloorDB
	}
	return max(20*math.Log10(float64(peak)), core.FloorDB)
}
