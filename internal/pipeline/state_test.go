// SPDX-License-Identifier: MIT
package pipeline

import (
	"testing"

	"spectral/internal/arena"
	"spectral/internal/core"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Uninitialized, "uninitialized"},
		{CoreLoading, "core-loading"},
		{AwaitingConfig, "awaiting-config"},
		{Ready, "ready"},
		{Failed, "failed"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTransitionsAreOrdered(t *testing.T) {
	region, _ := arena.New(testCapacity)
	p := newProcessor(region, 0, 0)
	c := core.NewGoertzel(testCapacity)

	if p.attach(c) {
		t.Error("attach succeeded before begin")
	}
	if !p.begin() {
		t.Fatal("begin failed from Uninitialized")
	}
	if p.begin() {
		t.Error("begin succeeded twice")
	}
	if p.attach(nil) {
		t.Error("attach accepted a nil core")
	}
	if !p.attach(c) {
		t.Fatal("attach failed from CoreLoading")
	}
	if p.State() != AwaitingConfig {
		t.Errorf("state = %v, want %v", p.State(), AwaitingConfig)
	}
}

func TestFailedIsTerminal(t *testing.T) {
	region, _ := arena.New(testCapacity)
	p := newProcessor(region, 0, 0)
	p.begin()
	p.fail(ErrClosed)
	p.fail(ErrAlreadyInitialized)

	if !p.State().Terminal() {
		t.Fatalf("state = %v, want terminal", p.State())
	}
	if p.attach(core.NewGoertzel(1)) || p.begin() {
		t.Error("transition out of Failed")
	}
	if p.Err() != ErrClosed {
		t.Errorf("Err() = %v, want the first failure", p.Err())
	}
	if len(p.Errors()) != 1 {
		t.Errorf("%d error messages queued, want 1", len(p.Errors()))
	}
}
