// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"spectral/internal/arena"
	"spectral/internal/core"
)

const (
	// DefaultResultQueue is the number of results buffered between the
	// audio thread and the host before the oldest is dropped.
	DefaultResultQueue = 8

	// DefaultBudgetRatio is the share of a block's real-time duration the
	// processor may spend before the block counts as an overrun.
	DefaultBudgetRatio = 0.8
)

var errCorePanic = errors.New("numeric core panicked")

// Stats is a snapshot of the processor counters.
type Stats struct {
	Processed uint64 // blocks that produced a result
	Skipped   uint64 // zero-length blocks
	Malformed uint64 // blocks rejected as malformed input
	Dropped   uint64 // results discarded because the queue was full
	Overruns  uint64 // blocks that exceeded the time budget
}

// boundCore wraps the interface so it can be published atomically.
type boundCore struct {
	core core.Core
}

// blockContext is the immutable per-instance configuration, fixed when the
// init message is applied.
type blockContext struct {
	sampleRate float64
	nsPerFrame float64 // time budget per frame
	args       core.Args
}

// Processor runs on the real-time audio thread. Process is called once per
// block from a single goroutine; every other method is safe to call from
// the control plane concurrently.
//
// In steady state Process performs no allocation, takes no locks and never
// blocks. Results leave through a bounded channel and the oldest result is
// discarded when the consumer falls behind.
type Processor struct {
	state atomic.Int32
	core  atomic.Pointer[boundCore]

	// Region and its slot views, owned by the audio thread.
	region   *arena.Region
	mem      []float32
	inLeft   []float32
	inRight  []float32
	dbLevels []float32
	pan      []float32

	block       blockContext
	budgetRatio float64
	seq         uint64
	scratch     Result

	config  chan InitMessage
	results chan Result
	errs    chan ErrorMessage
	failure atomic.Pointer[ErrorMessage]

	processed atomic.Uint64
	skipped   atomic.Uint64
	malformed atomic.Uint64
	dropped   atomic.Uint64
	overruns  atomic.Uint64

	lastFrames atomic.Int64
	lastRight  atomic.Int64
}

func newProcessor(region *arena.Region, queue int, budgetRatio float64) *Processor {
	if queue < 1 {
		queue = DefaultResultQueue
	}
	if !(budgetRatio > 0) {
		budgetRatio = DefaultBudgetRatio
	}
	return &Processor{
		region:      region,
		mem:         region.Memory(),
		inLeft:      region.Slot(arena.InputLeft),
		inRight:     region.Slot(arena.InputRight),
		dbLevels:    region.Slot(arena.OutputDBLevels),
		pan:         region.Slot(arena.OutputPanAngles),
		budgetRatio: budgetRatio,
		config:      make(chan InitMessage, 1),
		results:     make(chan Result, queue),
		errs:        make(chan ErrorMessage, 1),
	}
}

// State returns the current lifecycle state.
func (p *Processor) State() State { return State(p.state.Load()) }

// Capacity returns the largest block, in frames per channel, the processor
// accepts.
func (p *Processor) Capacity() int { return p.region.Capacity() }

// Results returns the channel results are published on.
func (p *Processor) Results() <-chan Result { return p.results }

// Errors returns the channel the single failure message is sent on.
func (p *Processor) Errors() <-chan ErrorMessage { return p.errs }

// Backlog returns the number of results waiting to be received.
func (p *Processor) Backlog() int { return len(p.results) }

// Err returns the error that moved the processor to Failed, or nil.
func (p *Processor) Err() error {
	if m := p.failure.Load(); m != nil {
		return m.Err
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Skipped:   p.skipped.Load(),
		Malformed: p.malformed.Load(),
		Dropped:   p.dropped.Load(),
		Overruns:  p.overruns.Load(),
	}
}

// LastMalformed describes the most recent malformed block, or returns nil
// if there has been none.
func (p *Processor) LastMalformed() *MalformedInputWarning {
	if p.malformed.Load() == 0 {
		return nil
	}
	return &MalformedInputWarning{
		Frames:      int(p.lastFrames.Load()),
		RightFrames: int(p.lastRight.Load()),
		Capacity:    p.Capacity(),
	}
}

// Process handles one block. left and right must have the same length;
// a nil or empty right channel is treated as mono and left is analysed on
// both sides. When outLeft and outRight are non-nil the input is copied
// to them unchanged, whatever the state of the pipeline.
func (p *Processor) Process(left, right, outLeft, outRight []float32) {
	passThrough(left, right, outLeft, outRight)

	n := len(left)
	if n == 0 {
		p.skipped.Add(1)
		return
	}

	switch State(p.state.Load()) {
	case Ready:
	case AwaitingConfig:
		if !p.pollConfig() {
			return
		}
	default:
		return
	}

	if n > p.region.Capacity() || (len(right) != 0 && len(right) != n) {
		p.lastFrames.Store(int64(n))
		p.lastRight.Store(int64(len(right)))
		p.malformed.Add(1)
		return
	}

	p.processBlock(left, right)
}

func passThrough(left, right, outLeft, outRight []float32) {
	if outLeft != nil {
		copy(outLeft, left)
	}
	if outRight != nil {
		if len(right) == 0 {
			copy(outRight, left)
		} else {
			copy(outRight, right)
		}
	}
}

func (p *Processor) processBlock(left, right []float32) {
	start := time.Now()
	n := len(left)

	copy(p.inLeft[:n], left)
	if len(right) == 0 {
		copy(p.inRight[:n], left)
	} else {
		copy(p.inRight[:n], right)
	}

	args := p.block.args
	args.Left.Len = n
	args.Right.Len = n

	bound := p.core.Load()
	if err := p.invoke(bound.core, args); err != nil {
		p.fail(&RuntimeComputeError{Seq: p.seq + 1, Frames: n, Err: err})
		return
	}

	p.seq++
	p.scratch.Seq = p.seq
	p.scratch.Frames = n
	copy(p.scratch.DBLevels[:], p.dbLevels)
	copy(p.scratch.PanAngles[:], p.pan)
	p.publish()
	p.processed.Add(1)

	budget := time.Duration(float64(n) * p.block.nsPerFrame)
	if time.Since(start) > budget {
		p.overruns.Add(1)
	}
}

// invoke calls the core, converting a panic into an error so a faulty core
// can never take the audio thread down.
func (p *Processor) invoke(c core.Core, args core.Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errCorePanic, r)
		}
	}()
	return c.Transform(p.mem, args)
}

// publish sends the scratch result, evicting the oldest queued result when
// the channel is full.
func (p *Processor) publish() {
	select {
	case p.results <- p.scratch:
		return
	default:
	}

	select {
	case <-p.results:
		p.dropped.Add(1)
	default:
	}

	select {
	case p.results <- p.scratch:
	default:
		p.dropped.Add(1)
	}
}

// pollConfig applies a pending init message. It reports whether the
// processor is now Ready.
func (p *Processor) pollConfig() bool {
	select {
	case msg := <-p.config:
		if err := msg.Validate(); err != nil {
			p.fail(&ConfigurationError{Op: "init message", Err: err})
			return false
		}
		p.apply(msg)
		return p.state.CompareAndSwap(int32(AwaitingConfig), int32(Ready))
	default:
		return false
	}
}

func (p *Processor) apply(msg InitMessage) {
	copy(p.region.Slot(arena.TargetFrequencies), msg.TargetFrequencies[:])
	p.block = blockContext{
		sampleRate: msg.SampleRate,
		nsPerFrame: p.budgetRatio * float64(time.Second) / msg.SampleRate,
		args:       core.NewArgs(p.region.Layout(), 0, float32(msg.SampleRate)),
	}
}

// begin moves a fresh processor to CoreLoading.
func (p *Processor) begin() bool {
	return p.state.CompareAndSwap(int32(Uninitialized), int32(CoreLoading))
}

// attach publishes the loaded core and moves to AwaitingConfig.
func (p *Processor) attach(c core.Core) bool {
	if c == nil {
		return false
	}
	p.core.Store(&boundCore{core: c})
	if !p.state.CompareAndSwap(int32(CoreLoading), int32(AwaitingConfig)) {
		p.core.Store(nil)
		return false
	}
	return true
}

// configure queues the init message for the audio thread.
func (p *Processor) configure(msg InitMessage) bool {
	select {
	case p.config <- msg:
		return true
	default:
		return false
	}
}

// fail moves to Failed and sends the error message. Only the first
// failure is reported.
func (p *Processor) fail(err error) {
	for {
		s := p.state.Load()
		if State(s) == Failed {
			return
		}
		if p.state.CompareAndSwap(s, int32(Failed)) {
			break
		}
	}

	msg := ErrorMessage{Err: err}
	p.failure.Store(&msg)
	select {
	case p.errs <- msg:
	default:
	}
}
