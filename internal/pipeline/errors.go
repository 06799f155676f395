// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInitialized = errors.New("pipeline already initialized")
	ErrNotInitialized     = errors.New("pipeline not initialized")
	ErrClosed             = errors.New("pipeline closed")
)

// ConfigurationError reports a problem found while setting the pipeline
// up: a bad frequency table, an unusable sample rate or capacity, or a
// numeric core that could not be loaded. It moves the pipeline to Failed.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RuntimeComputeError reports a failure of the numeric core while
// processing block Seq. It moves the pipeline to Failed.
type RuntimeComputeError struct {
	Seq    uint64
	Frames int
	Err    error
}

func (e *RuntimeComputeError) Error() string {
	return fmt.Sprintf("compute error in block %d (%d frames): %v", e.Seq, e.Frames, e.Err)
}

func (e *RuntimeComputeError) Unwrap() error { return e.Err }

// MalformedInputWarning describes a block that was skipped because its
// shape was invalid. It does not change the pipeline state.
type MalformedInputWarning struct {
	Frames      int
	RightFrames int
	Capacity    int
}

func (w *MalformedInputWarning) Error() string {
	if w.Frames > w.Capacity {
		return fmt.Sprintf("malformed input: %d frames exceeds capacity %d", w.Frames, w.Capacity)
	}
	return fmt.Sprintf("malformed input: channel lengths %d/%d", w.Frames, w.RightFrames)
}
