// SPDX-License-Identifier: MIT
package pipeline

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"spectral/internal/freqtable"
)

func TestNewInitMessage(t *testing.T) {
	table := freqtable.New()
	unsorted := table
	unsorted[10], unsorted[11] = unsorted[11], unsorted[10]
	withNaN := table
	withNaN[0] = math.NaN()

	tests := []struct {
		name       string
		sampleRate float64
		freqs      []float64
		wantIs     error
	}{
		{"Valid", testSampleRate, table[:], nil},
		{"Empty", testSampleRate, nil, freqtable.ErrLength},
		{"Too Short", testSampleRate, table[:129], freqtable.ErrLength},
		{"Too Long", testSampleRate, append(table[:], 20000), freqtable.ErrLength},
		{"Unsorted", testSampleRate, unsorted[:], freqtable.ErrNotSorted},
		{"NaN", testSampleRate, withNaN[:], freqtable.ErrNotPositive},
		{"Zero Rate", 0, table[:], nil},
		{"Infinite Rate", math.Inf(1), table[:], nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewInitMessage(tt.sampleRate, tt.freqs)
			if tt.name == "Valid" {
				if err != nil {
					t.Fatalf("NewInitMessage: %v", err)
				}
				if msg.SampleRate != testSampleRate || msg.TargetFrequencies[0] != 27.5 {
					t.Errorf("msg = %v Hz, first bin %v", msg.SampleRate, msg.TargetFrequencies[0])
				}
				if err := msg.Validate(); err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}

			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want ConfigurationError", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestResultJSON(t *testing.T) {
	r := Result{Seq: 3, Frames: 128}
	r.DBLevels[0] = -12.5
	r.PanAngles[129] = 0.25

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"seq", "frames", "dbLevels", "panAngles"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("key %q missing from %s", key, data)
		}
	}

	var db []float32
	if err := json.Unmarshal(decoded["dbLevels"], &db); err != nil || len(db) != 260 || db[0] != -12.5 {
		t.Errorf("dbLevels = %d values (%v)", len(db), err)
	}
	var pan []float32
	if err := json.Unmarshal(decoded["panAngles"], &pan); err != nil || len(pan) != 130 || pan[129] != 0.25 {
		t.Errorf("panAngles = %d values (%v)", len(pan), err)
	}
}

func TestErrorMessageJSON(t *testing.T) {
	msg := ErrorMessage{Err: &RuntimeComputeError{Seq: 7, Frames: 128, Err: errors.New("nan in output")}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), `{"error":"compute error in block 7`) {
		t.Errorf("json = %s", data)
	}
}

func TestMalformedInputWarningText(t *testing.T) {
	tests := []struct {
		w    MalformedInputWarning
		want string
	}{
		{MalformedInputWarning{Frames: 300, RightFrames: 300, Capacity: 256}, "exceeds capacity 256"},
		{MalformedInputWarning{Frames: 64, RightFrames: 32, Capacity: 256}, "channel lengths 64/32"},
	}
	for _, tt := range tests {
		if got := tt.w.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("Error() = %q, want it to contain %q", got, tt.want)
		}
	}
}
