// SPDX-License-Identifier: MIT
package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	"spectral/internal/arena"
	"spectral/internal/freqtable"
)

// InitMessage carries the immutable per-instance configuration from the
// control plane to the processor. It is sent exactly once, after the core
// has loaded.
type InitMessage struct {
	SampleRate        float64
	TargetFrequencies [freqtable.Bins]float32
}

// NewInitMessage validates freqs and builds the init message.
func NewInitMessage(sampleRate float64, freqs []float64) (InitMessage, error) {
	var msg InitMessage
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return msg, &ConfigurationError{Op: "sample rate", Err: fmt.Errorf("invalid sample rate %v", sampleRate)}
	}
	table, err := freqtable.FromSlice(freqs)
	if err != nil {
		return msg, &ConfigurationError{Op: "frequency table", Err: err}
	}
	msg.SampleRate = sampleRate
	msg.TargetFrequencies = table.Float32()
	return msg, nil
}

// Validate checks a message received on the processor side.
func (m InitMessage) Validate() error {
	if !(m.SampleRate > 0) || math.IsInf(m.SampleRate, 0) {
		return fmt.Errorf("invalid sample rate %v", m.SampleRate)
	}
	var table freqtable.Table
	for k, f := range m.TargetFrequencies {
		table[k] = float64(f)
	}
	return table.Validate()
}

// Result is one block worth of output. It is a plain value: the arrays are
// copied out of the region before the next block, so a Result never
// aliases shared memory and can be kept as long as needed.
type Result struct {
	Seq       uint64                   `json:"seq"`
	Frames    int                      `json:"frames"`
	DBLevels  [arena.DBLevels]float32  `json:"dbLevels"`
	PanAngles [arena.PanAngles]float32 `json:"panAngles"`
}

// Left returns the dB levels of the left channel.
func (r *Result) Left() []float32 { return r.DBLevels[:freqtable.Bins] }

// Right returns the dB levels of the right channel.
func (r *Result) Right() []float32 { return r.DBLevels[freqtable.Bins:] }

// ErrorMessage is sent at most once per pipeline, on the transition to
// Failed.
type ErrorMessage struct {
	Err error
}

func (m ErrorMessage) Error() string { return m.Err.Error() }

func (m ErrorMessage) Unwrap() error { return m.Err }

// MarshalJSON encodes the message as {"error": "..."}.
func (m ErrorMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error string `json:"error"`
	}{m.Err.Error()})
}
