// SPDX-License-Identifier: MIT
/*
Package audio drives the pipeline from real audio I/O:
- Duplex or input-only capture using PortAudio
- Pass-through of the captured signal to the output device
- Peak metering and clip counting on the audio thread
- Off-thread WAV recording of the input
- File playback through oto for offline analysis

Thread Safety:
- The PortAudio callback only copies, meters and hands blocks on
- Recording state is swapped atomically; the writer runs on its own goroutine
- Locks OS thread during audio processing
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"spectral/internal/config"
	"spectral/internal/log"
)

// BlockProcessor consumes one block per callback on the audio thread.
// outLeft and outRight may be nil when there is no output stream.
type BlockProcessor interface {
	Process(left, right, outLeft, outRight []float32)
}

// ErrNotRunning is returned when stopping an engine that was never started.
var ErrNotRunning = errors.New("audio: engine not running")

type Engine struct {
	// Core configuration and state.
	config    config.AudioConfig
	recording config.RecordingConfig
	capacity  int
	proc      BlockProcessor
	log       log.Logger

	// Audio input handling.
	inputDevice   *portaudio.DeviceInfo
	inputChannels int
	inputLatency  time.Duration

	// Optional output for pass-through.
	outputDevice   *portaudio.DeviceInfo
	outputChannels int
	outputLatency  time.Duration

	stream *portaudio.Stream

	meter    Meter
	recorder atomic.Pointer[Recorder]
}

// NewEngine resolves the configured devices. PortAudio must be initialized.
func NewEngine(cfg *config.Config, proc BlockProcessor) (*Engine, error) {
	if proc == nil {
		return nil, fmt.Errorf("audio: nil block processor")
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:        cfg.Audio,
		recording:     cfg.Recording,
		capacity:      cfg.Pipeline.QuantumCapacity,
		proc:          proc,
		log:           log.For("audio"),
		inputDevice:   inputDevice,
		inputChannels: min(2, inputDevice.MaxInputChannels),
	}
	e.meter.SetClipThreshold(DefaultClipThreshold)

	if e.config.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	if cfg.Audio.PassThrough {
		outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
		if err != nil {
			return nil, err
		}
		e.outputDevice = outputDevice
		e.outputChannels = min(2, outputDevice.MaxOutputChannels)
		if e.config.LowLatency {
			e.outputLatency = outputDevice.DefaultLowOutputLatency
		} else {
			e.outputLatency = outputDevice.DefaultHighOutputLatency
		}
	}

	return e, nil
}

// InputChannels returns the number of captured channels, 1 or 2.
func (e *Engine) InputChannels() int { return e.inputChannels }

// Meter returns the input level meter.
func (e *Engine) Meter() *Meter { return &e.meter }

// Start opens and starts the PortAudio stream.
func (e *Engine) Start() error {
	if e.stream != nil {
		return fmt.Errorf("audio: engine already running")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.inputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	var (
		stream *portaudio.Stream
		err    error
	)
	if e.outputDevice != nil {
		params.Output = portaudio.StreamDeviceParameters{
			Channels: e.outputChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		}
		stream, err = portaudio.OpenStream(params, e.processDuplex)
	} else {
		stream, err = portaudio.OpenStream(params, e.processInput)
	}
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	e.stream = stream

	e.log.Infof("capturing %d channel(s) from %q at %.0f Hz (latency %s)",
		e.inputChannels, e.inputDevice.Name, e.config.SampleRate, e.inputLatency)
	if e.outputDevice != nil {
		e.log.Infof("passing through to %q", e.outputDevice.Name)
	}
	return nil
}

// Stop stops and closes the stream.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return ErrNotRunning
	}
	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	return nil
}

// processDuplex is the PortAudio callback when pass-through is enabled.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processDuplex(in, out [][]float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var outLeft, outRight []float32
	switch len(out) {
	case 0:
	case 1:
		outLeft = out[0]
	default:
		outLeft, outRight = out[0], out[1]
		for _, ch := range out[2:] {
			clear(ch)
		}
	}
	e.process(in, outLeft, outRight)
}

// processInput is the PortAudio callback for capture only.
func (e *Engine) processInput(in [][]float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.process(in, nil, nil)
}

func (e *Engine) process(in [][]float32, outLeft, outRight []float32) {
	if len(in) == 0 {
		clear(outLeft)
		clear(outRight)
		return
	}

	left := in[0]
	var right []float32
	if len(in) > 1 {
		right = in[1]
	}

	e.proc.Process(left, right, outLeft, outRight)
	e.meter.Observe(left, right)

	if r := e.recorder.Load(); r != nil {
		r.Write(left, right)
	}
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool { return e.recorder.Load() != nil }

// StartRecording begins writing the captured input to a WAV file.
func (e *Engine) StartRecording(filename string) error {
	if e.recorder.Load() != nil {
		return fmt.Errorf("already recording")
	}

	r, err := NewRecorder(filename, int(e.config.SampleRate), e.inputChannels, e.recording.BitDepth, e.capacity)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		return fmt.Errorf("already recording")
	}

	e.log.Infof("recording %d-bit WAV to %s", e.recording.BitDepth, filename)
	return nil
}

// StopRecording finishes the current recording, if any.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	err := r.Close()
	if d := r.Dropped(); d > 0 {
		e.log.Warnf("recording %s: %d blocks dropped", r.Path(), d)
	}
	e.log.Infof("recording %s: %d frames written", r.Path(), r.Frames())
	return err
}

// Close stops the recording and the stream.
func (e *Engine) Close() error {
	var errs []error
	if err := e.StopRecording(); err != nil {
		errs = append(errs, err)
	}
	if e.stream != nil {
		if err := e.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
