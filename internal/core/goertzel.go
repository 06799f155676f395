// SPDX-License-Identifier: MIT
package core

import (
	"context"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/dsp/window"
)

// floorAmplitude is FloorDB expressed as a linear amplitude.
var floorAmplitude = math.Pow(10, FloorDB/20)

// Goertzel is the built-in reference core. Each channel is Hann windowed
// and every target frequency is evaluated with a Goertzel resonator, which
// amounts to correlating the block with a windowed complex sinusoid at
// that frequency. Amplitudes are reported in dBFS and the pan angle of a
// bin is atan2(right, left) - Pi/4.
//
// Scratch buffers are sized at construction and reused, so Transform does
// not allocate for blocks up to the construction capacity. A Goertzel is not
// safe for concurrent use.
type Goertzel struct {
	x      []float64 // windowed samples of the current channel
	win    []float64 // window coefficients for winLen samples
	winLen int
	winSum float64
	amp    [2][]float64 // linear amplitudes per channel and bin
}

// NewGoertzel returns a reference core with scratch space for capacity
// samples per channel.
func NewGoertzel(capacity int) *Goertzel {
	if capacity < 1 {
		capacity = 1
	}
	return &Goertzel{
		x:   make([]float64, capacity),
		win: make([]float64, capacity),
		amp: [2][]float64{make([]float64, 0, 256), make([]float64, 0, 256)},
	}
}

// BuiltinLoader returns a Loader for the reference core.
func BuiltinLoader(capacity int) Loader {
	return LoaderFunc(func(ctx context.Context) (Core, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewGoertzel(capacity), nil
	})
}

// Name identifies the core in logs.
func (w *Goertzel) Name() string { return "builtin-goertzel" }

// Transform implements Core.
func (w *Goertzel) Transform(mem []float32, args Args) error {
	if err := args.Validate(len(mem)); err != nil {
		return err
	}

	n := args.Left.Len
	w.prepare(n)

	freqs := mem[args.Frequencies.Offset:args.Frequencies.End()]
	db := mem[args.DBLevels.Offset:args.DBLevels.End()]
	pan := mem[args.PanAngles.Offset:args.PanAngles.End()]
	bins := len(freqs)
	sampleRate := float64(args.SampleRate)

	w.amp[0] = w.amp[0][:0]
	w.amp[1] = w.amp[1][:0]
	w.analyze(0, mem[args.Left.Offset:args.Left.End()], freqs, sampleRate)
	w.analyze(1, mem[args.Right.Offset:args.Right.End()], freqs, sampleRate)

	for k := range bins {
		left, right := w.amp[0][k], w.amp[1][k]
		db[k] = float32(toDB(left))
		db[bins+k] = float32(toDB(right))
		pan[k] = float32(panAngle(left, right))
	}
	return nil
}

// prepare sizes the scratch buffers and rebuilds the window when the block
// length changes. Blocks of one or two samples use a rectangular window,
// a Hann window of that length is all zeros.
func (w *Goertzel) prepare(n int) {
	if n > len(w.x) {
		w.x = make([]float64, n)
		w.win = make([]float64, n)
	}
	if n == w.winLen {
		return
	}

	coeffs := w.win[:n]
	for i := range coeffs {
		coeffs[i] = 1
	}
	if n > 2 {
		window.Hann(coeffs)
	}

	w.winSum = 0
	for _, c := range coeffs {
		w.winSum += c
	}
	w.winLen = n
}

// analyze appends the amplitude of every bin of one channel to w.amp[ch].
func (w *Goertzel) analyze(ch int, samples []float32, freqs []float32, sampleRate float64) {
	x := w.x[:len(samples)]
	for i, s := range samples {
		x[i] = float64(s)
	}
	vecmath.MulBlockInPlace(x, w.win[:len(x)])

	nyquist := sampleRate / 2
	for _, f := range freqs {
		freq := float64(f)
		if freq >= nyquist || freq <= 0 {
			w.amp[ch] = append(w.amp[ch], 0)
			continue
		}

		coeff := 2 * math.Cos(2*math.Pi*freq/sampleRate)
		var s0, s1 float64
		for _, v := range x {
			s := v + coeff*s0 - s1
			s1 = s0
			s0 = s
		}

		power := s0*s0 + s1*s1 - coeff*s0*s1
		amplitude := 0.0
		if power > 0 && w.winSum > 0 {
			// Peak amplitude of a sinusoid at freq, corrected for the
			// coherent gain of the window.
			amplitude = 2 * math.Sqrt(power) / w.winSum
		}
		w.amp[ch] = append(w.amp[ch], amplitude)
	}
}

func toDB(amplitude float64) float64 {
	if !(amplitude > floorAmplitude) {
		return FloorDB
	}
	return 20 * math.Log10(amplitude)
}

func panAngle(left, right float64) float64 {
	if !(left > floorAmplitude) && !(right > floorAmplitude) {
		return NeutralPan
	}
	return math.Atan2(right, left) - MaxPan
}
