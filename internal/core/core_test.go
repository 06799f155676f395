// SPDX-License-Identifier: MIT
package core

import (
	"context"
	"errors"
	"testing"

	"spectral/internal/arena"
)

func TestNewArgs(t *testing.T) {
	region, err := arena.New(128)
	if err != nil {
		t.Fatal(err)
	}
	args := NewArgs(region.Layout(), 100, 48000)

	if args.Left.Len != 100 || args.Right.Len != 100 {
		t.Errorf("channel spans = %d/%d, want 100", args.Left.Len, args.Right.Len)
	}
	if args.Left.Offset != region.Span(arena.InputLeft).Offset {
		t.Error("left span does not start at inputLeft")
	}
	if args.Frequencies != region.Span(arena.TargetFrequencies) {
		t.Error("frequency span differs from layout")
	}
	if err := args.Validate(len(region.Memory())); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestArgsValidate(t *testing.T) {
	region, _ := arena.New(128)
	size := len(region.Memory())
	valid := NewArgs(region.Layout(), 128, 48000)

	tests := []struct {
		name   string
		mutate func(a *Args)
	}{
		{"zero frames", func(a *Args) { a.Left.Len, a.Right.Len = 0, 0 }},
		{"unequal channels", func(a *Args) { a.Right.Len = 64 }},
		{"span past end", func(a *Args) { a.PanAngles.Offset = size }},
		{"negative offset", func(a *Args) { a.Left.Offset = -1 }},
		{"short table", func(a *Args) { a.Frequencies.Len = 129 }},
		{"short dB", func(a *Args) { a.DBLevels.Len = 130 }},
		{"short pan", func(a *Args) { a.PanAngles.Len = 1 }},
		{"zero sample rate", func(a *Args) { a.SampleRate = 0 }},
		{"negative sample rate", func(a *Args) { a.SampleRate = -44100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			if err := a.Validate(size); !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("Validate() = %v, want ErrInvalidArgs", err)
			}
		})
	}
}

func TestLoaderFunc(t *testing.T) {
	want := NewGoertzel(16)
	l := LoaderFunc(func(context.Context) (Core, error) { return want, nil })

	got, err := l.Load(context.Background())
	if err != nil || got != want {
		t.Errorf("Load() = %v, %v", got, err)
	}
}

func TestBuiltinLoaderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := BuiltinLoader(128).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() err = %v, want context.Canceled", err)
	}
}
