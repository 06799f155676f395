// SPDX-License-Identifier: MIT

/*
Package arena implements the shared sample region exchanged with the
numeric core.

One []float32 allocation is divided, once, into five named slices at fixed
offsets:

	+-----------+------------+-------------------+----------------+-----------------+
	| InputLeft | InputRight | TargetFrequencies | OutputDBLevels | OutputPanAngles |
	|  capacity |  capacity  |        130        |      260       |       130       |
	+-----------+------------+-------------------+----------------+-----------------+

Each slice starts on a 16-element (64 byte) boundary. Offsets and lengths
never change after New returns, and the region is reused for every block.
The host owns the memory; the core borrows it for the duration of one call
and nothing may keep a view into it across blocks.
*/
package arena

import (
	"errors"
	"fmt"

	"spectral/internal/freqtable"
	"spectral/pkg/bitint"
)

// Slot names one of the fixed slices of the region.
type Slot int

const (
	InputLeft Slot = iota
	InputRight
	TargetFrequencies
	OutputDBLevels
	OutputPanAngles
	numSlots
)

// String returns the slot name used in logs and errors.
func (s Slot) String() string {
	switch s {
	case InputLeft:
		return "inputLeft"
	case InputRight:
		return "inputRight"
	case TargetFrequencies:
		return "targetFrequencies"
	case OutputDBLevels:
		return "outputDbLevels"
	case OutputPanAngles:
		return "outputPanAngles"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

const (
	// Alignment of every slice, in float32 elements.
	Alignment = 16

	// ElementSize is the size of one region element in bytes.
	ElementSize = 4

	// MaxCapacity bounds the per-channel input capacity.
	MaxCapacity = 8192

	// DBLevels is the length of OutputDBLevels: left bins then right bins.
	DBLevels = 2 * freqtable.Bins

	// PanAngles is the length of OutputPanAngles.
	PanAngles = freqtable.Bins
)

var ErrCapacity = errors.New("quantum capacity out of range")

// Span locates a slice inside the region, in elements.
type Span struct {
	Offset int
	Len    int
}

// End returns the first element after the span.
func (s Span) End() int { return s.Offset + s.Len }

// ByteOffset returns the offset of the span in bytes.
func (s Span) ByteOffset() int { return s.Offset * ElementSize }

// ByteLen returns the length of the span in bytes.
func (s Span) ByteLen() int { return s.Len * ElementSize }

// Within reports whether the span fits in a region of size elements.
func (s Span) Within(size int) bool {
	return s.Offset >= 0 && s.Len >= 0 && s.End() <= size
}

// Layout is the fixed placement of every slot.
type Layout struct {
	spans    [numSlots]Span
	size     int
	capacity int
}

// NewLayout computes the placement for a per-channel input capacity. The
// input slots are sized to the next power of two; Capacity still reports
// the requested bound.
func NewLayout(quantumCapacity int) (Layout, error) {
	if quantumCapacity < 1 || quantumCapacity > MaxCapacity {
		return Layout{}, fmt.Errorf("%w: %d (want 1..%d)", ErrCapacity, quantumCapacity, MaxCapacity)
	}

	slotLen := bitint.NextPowerOfTwo(quantumCapacity)
	lengths := [numSlots]int{
		InputLeft:         slotLen,
		InputRight:        slotLen,
		TargetFrequencies: freqtable.Bins,
		OutputDBLevels:    DBLevels,
		OutputPanAngles:   PanAngles,
	}

	var l Layout
	offset := 0
	for slot, n := range lengths {
		l.spans[slot] = Span{Offset: offset, Len: n}
		offset = bitint.AlignUp(offset+n, Alignment)
	}
	l.size = offset
	l.capacity = quantumCapacity
	return l, nil
}

// Span returns the placement of a slot.
func (l Layout) Span(s Slot) Span { return l.spans[s] }

// Size returns the total number of elements in the region.
func (l Layout) Size() int { return l.size }

// Capacity returns the largest block, in frames per channel, the layout
// accepts.
func (l Layout) Capacity() int { return l.capacity }

// Region is the single allocation shared with the numeric core.
type Region struct {
	layout Layout
	mem    []float32
}

// New allocates a region for the given per-channel quantum capacity.
func New(quantumCapacity int) (*Region, error) {
	layout, err := NewLayout(quantumCapacity)
	if err != nil {
		return nil, err
	}
	return &Region{
		layout: layout,
		mem:    make([]float32, layout.Size()),
	}, nil
}

// Layout returns the fixed placement of the region.
func (r *Region) Layout() Layout { return r.layout }

// Span returns the placement of a slot.
func (r *Region) Span(s Slot) Span { return r.layout.spans[s] }

// Capacity returns the per-channel input capacity.
func (r *Region) Capacity() int { return r.layout.capacity }

// Slot returns the full slice for s. The capacity is clipped so appends can
// never spill into the neighbouring slot.
func (r *Region) Slot(s Slot) []float32 {
	sp := r.layout.spans[s]
	return r.mem[sp.Offset:sp.End():sp.End()]
}

// Memory returns the whole backing allocation. It is handed to the core
// together with explicit spans.
func (r *Region) Memory() []float32 { return r.mem }
