// SPDX-License-Identifier: MIT
package pipeline

import "fmt"

// State is the lifecycle state of a processor.
//
//	Uninitialized -> CoreLoading -> AwaitingConfig -> Ready
//
// Any state may move to Failed, and nothing leaves Failed. A failed
// pipeline is replaced, never repaired.
type State int32

const (
	Uninitialized State = iota
	CoreLoading
	AwaitingConfig
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case CoreLoading:
		return "core-loading"
	case AwaitingConfig:
		return "awaiting-config"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Failed }
