// SPDX-License-Identifier: MIT
package arena

import (
	"errors"
	"testing"

	"spectral/internal/freqtable"
)

func TestNewLayout(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantSlot int
	}{
		{"render quantum", 128, 128},
		{"odd capacity", 300, 512},
		{"single frame", 1, 1},
		{"maximum", MaxCapacity, MaxCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayout(tt.capacity)
			if err != nil {
				t.Fatalf("NewLayout(%d): %v", tt.capacity, err)
			}
			if l.Capacity() != tt.capacity {
				t.Errorf("Capacity() = %d, want %d", l.Capacity(), tt.capacity)
			}

			wantLens := map[Slot]int{
				InputLeft:         tt.wantSlot,
				InputRight:        tt.wantSlot,
				TargetFrequencies: freqtable.Bins,
				OutputDBLevels:    260,
				OutputPanAngles:   130,
			}

			prevEnd := 0
			for s := InputLeft; s < numSlots; s++ {
				sp := l.Span(s)
				if sp.Len != wantLens[s] {
					t.Errorf("%s len = %d, want %d", s, sp.Len, wantLens[s])
				}
				if sp.Offset%Alignment != 0 {
					t.Errorf("%s offset %d not aligned to %d", s, sp.Offset, Alignment)
				}
				if sp.Offset < prevEnd {
					t.Errorf("%s overlaps previous slot (%d < %d)", s, sp.Offset, prevEnd)
				}
				if !sp.Within(l.Size()) {
					t.Errorf("%s %+v outside region of %d", s, sp, l.Size())
				}
				prevEnd = sp.End()
			}
		})
	}
}

func TestNewLayoutRejectsCapacity(t *testing.T) {
	for _, c := range []int{0, -1, MaxCapacity + 1} {
		if _, err := NewLayout(c); !errors.Is(err, ErrCapacity) {
			t.Errorf("NewLayout(%d) err = %v, want ErrCapacity", c, err)
		}
	}
}

func TestRegionSlotsAreIsolated(t *testing.T) {
	r, err := New(128)
	if err != nil {
		t.Fatal(err)
	}

	left := r.Slot(InputLeft)
	if cap(left) != len(left) {
		t.Fatalf("slot capacity %d exceeds length %d", cap(left), len(left))
	}

	for i := range left {
		left[i] = 1
	}
	for _, v := range r.Slot(InputRight) {
		if v != 0 {
			t.Fatal("write to inputLeft leaked into inputRight")
		}
	}

	// Slots are views of the one allocation.
	mem := r.Memory()
	sp := r.Span(InputLeft)
	if mem[sp.Offset] != 1 {
		t.Error("slot is not backed by the region memory")
	}
}

func TestRegionIsNotReallocated(t *testing.T) {
	r, _ := New(128)
	before := &r.Memory()[0]
	_ = r.Slot(OutputDBLevels)
	_ = r.Slot(OutputPanAngles)
	if &r.Memory()[0] != before {
		t.Error("region memory moved")
	}
}

func TestSpanBytes(t *testing.T) {
	sp := Span{Offset: 16, Len: 130}
	if sp.ByteOffset() != 64 || sp.ByteLen() != 520 {
		t.Errorf("ByteOffset/ByteLen = %d/%d", sp.ByteOffset(), sp.ByteLen())
	}
	if sp.Within(145) || !sp.Within(146) {
		t.Error("Within boundary wrong")
	}
}

func TestSlotString(t *testing.T) {
	if OutputDBLevels.String() != "outputDbLevels" {
		t.Errorf("String() = %q", OutputDBLevels.String())
	}
}
