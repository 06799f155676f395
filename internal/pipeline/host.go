// SPDX-License-Identifier: MIT

/*
Package pipeline turns a live stereo stream into per-bin loudness and pan
results.

Two halves cooperate. The Processor runs on the real-time audio thread:
it copies each block into the shared region, invokes the numeric core and
copies the outputs into a Result value. The Host runs on the control
plane: it prepares the region, loads the core asynchronously, hands the
processor its configuration exactly once and relays results to a
Consumer in arrival order.

After set-up the halves only exchange copied messages over bounded
channels. The audio thread never logs, allocates or blocks; the host
reports its counters instead.
*/
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"spectral/internal/arena"
	"spectral/internal/core"
	"spectral/internal/freqtable"
	"spectral/internal/log"
)

// DefaultStatsInterval is how often the host reports processor counters.
const DefaultStatsInterval = 5 * time.Second

// Consumer receives results in arrival order from the host goroutine.
// Implementations must not block.
type Consumer interface {
	Consume(Result) error
}

// ErrorConsumer is implemented by consumers that also want the failure
// message.
type ErrorConsumer interface {
	ConsumeError(ErrorMessage) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(Result) error

// Consume calls f(r).
func (f ConsumerFunc) Consume(r Result) error { return f(r) }

// HostOption customises a Host.
type HostOption func(*hostOptions)

type hostOptions struct {
	queue         int
	budgetRatio   float64
	statsInterval time.Duration
	frequencies   []float64
}

// WithResultQueue sets the number of results buffered before the oldest is
// dropped.
func WithResultQueue(n int) HostOption {
	return func(o *hostOptions) { o.queue = n }
}

// WithBudgetRatio sets the share of real time a block may take before it
// is counted as an overrun.
func WithBudgetRatio(r float64) HostOption {
	return func(o *hostOptions) { o.budgetRatio = r }
}

// WithStatsInterval sets how often counters are logged.
func WithStatsInterval(d time.Duration) HostOption {
	return func(o *hostOptions) { o.statsInterval = d }
}

// WithFrequencies replaces the standard semitone table. The slice must
// hold exactly freqtable.Bins increasing frequencies.
func WithFrequencies(freqs []float64) HostOption {
	return func(o *hostOptions) { o.frequencies = append([]float64(nil), freqs...) }
}

// Host is the control-plane half of a pipeline instance.
type Host struct {
	id       uuid.UUID
	loader   core.Loader
	consumer Consumer
	opts     hostOptions
	log      log.Logger

	mu         sync.Mutex
	proc       *Processor
	table      freqtable.Table
	sampleRate float64
	cancel     context.CancelFunc
	loaded     chan struct{}
	loadDone   chan struct{}
	closed     bool

	delivered atomic.Uint64
	last      Stats
}

// NewHost creates an uninitialised pipeline instance that loads its core
// with loader and forwards results to consumer.
func NewHost(loader core.Loader, consumer Consumer, opts ...HostOption) (*Host, error) {
	if loader == nil {
		return nil, fmt.Errorf("pipeline: nil core loader")
	}
	if consumer == nil {
		return nil, fmt.Errorf("pipeline: nil consumer")
	}

	o := hostOptions{
		queue:         DefaultResultQueue,
		budgetRatio:   DefaultBudgetRatio,
		statsInterval: DefaultStatsInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Host{
		id:       uuid.New(),
		loader:   loader,
		consumer: consumer,
		opts:     o,
		log:      log.For("pipeline"),
		loaded:   make(chan struct{}),
		loadDone: make(chan struct{}),
	}, nil
}

// ID identifies this pipeline instance.
func (h *Host) ID() uuid.UUID { return h.id }

// Table returns the frequency table in use. It is the zero table before
// Initialize.
func (h *Host) Table() freqtable.Table {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.table
}

// SampleRate returns the sample rate passed to Initialize.
func (h *Host) SampleRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sampleRate
}

// Processor returns the audio-thread half, or nil before Initialize.
func (h *Host) Processor() *Processor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc
}

// State returns the processor state.
func (h *Host) State() State {
	if p := h.Processor(); p != nil {
		return p.State()
	}
	return Uninitialized
}

// Err returns the error that failed the pipeline, or nil.
func (h *Host) Err() error {
	if p := h.Processor(); p != nil {
		return p.Err()
	}
	return nil
}

// Delivered returns the number of results handed to the consumer.
func (h *Host) Delivered() uint64 { return h.delivered.Load() }

// Initialize builds the frequency table and the shared region, creates the
// processor and starts loading the core in the background. The region is
// handed to the processor; the host keeps no reference to it.
func (h *Host) Initialize(ctx context.Context, sampleRate float64, quantumCapacity int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return ErrClosed
	case h.proc != nil:
		return ErrAlreadyInitialized
	}

	freqs := h.opts.frequencies
	if freqs == nil {
		table := freqtable.New()
		freqs = table[:]
	}
	msg, err := NewInitMessage(sampleRate, freqs)
	if err != nil {
		return err
	}
	table, _ := freqtable.FromSlice(freqs)

	region, err := arena.New(quantumCapacity)
	if err != nil {
		return &ConfigurationError{Op: "shared region", Err: err}
	}

	proc := newProcessor(region, h.opts.queue, h.opts.budgetRatio)
	proc.begin()

	loadCtx, cancel := context.WithCancel(ctx)
	h.proc = proc
	h.table = table
	h.sampleRate = sampleRate
	h.cancel = cancel

	h.log.Infof("instance %s: %d bins, %.0f Hz, %d frame capacity", h.id, freqtable.Bins, sampleRate, region.Capacity())
	go h.load(loadCtx, proc, msg)
	return nil
}

func (h *Host) load(ctx context.Context, proc *Processor, msg InitMessage) {
	defer close(h.loadDone)
	defer close(h.loaded)

	start := time.Now()
	c, err := h.loader.Load(ctx)
	if err == nil && c == nil {
		err = fmt.Errorf("loader returned no core")
	}
	if err != nil {
		proc.fail(&ConfigurationError{Op: "load core", Err: err})
		return
	}

	if !proc.attach(c) {
		closeCore(c)
		return
	}
	proc.configure(msg)
	h.log.Infof("core %s loaded in %s", c.Name(), time.Since(start).Round(time.Microsecond))
}

// WaitLoaded blocks until the core is attached and the init message is
// queued, so the next block will be analysed. It returns the pipeline error
// if loading failed.
func (h *Host) WaitLoaded(ctx context.Context) error {
	if h.Processor() == nil {
		return ErrNotInitialized
	}
	select {
	case <-h.loaded:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := h.Err(); err != nil {
		return err
	}
	if h.State() == Failed {
		return ErrClosed
	}
	return nil
}

// Run relays results and errors from the processor until ctx is done.
// Results go to the consumer unmodified and in order. A pipeline error is
// logged once; the host does not try to recover and Err reports it.
func (h *Host) Run(ctx context.Context) error {
	proc := h.Processor()
	if proc == nil {
		return ErrNotInitialized
	}

	ticker := time.NewTicker(h.opts.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logStats(proc)
			return nil
		case r := <-proc.Results():
			if err := h.consumer.Consume(r); err != nil {
				h.log.Debugf("consumer: result %d: %v", r.Seq, err)
			}
			h.delivered.Add(1)
		case msg := <-proc.Errors():
			h.log.Errorf("instance %s failed: %v", h.id, msg.Err)
			if ec, ok := h.consumer.(ErrorConsumer); ok {
				if err := ec.ConsumeError(msg); err != nil {
					h.log.Debugf("consumer: error message: %v", err)
				}
			}
		case <-ticker.C:
			h.logStats(proc)
		}
	}
}

// Sync waits until every result published so far has been delivered or
// dropped. Run must be active.
func (h *Host) Sync(ctx context.Context) error {
	proc := h.Processor()
	if proc == nil {
		return ErrNotInitialized
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		s := proc.Stats()
		if h.delivered.Load()+s.Dropped >= s.Processed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *Host) logStats(proc *Processor) {
	s := proc.Stats()
	prev := h.last
	h.last = s

	if d := s.Processed - prev.Processed; d > 0 {
		h.log.Debugf("%d blocks processed, %d delivered", d, h.delivered.Load())
	}
	if d := s.Skipped - prev.Skipped; d > 0 {
		h.log.Debugf("%d empty blocks skipped", d)
	}
	if d := s.Malformed - prev.Malformed; d > 0 {
		h.log.Warnf("%d blocks skipped, last: %v", d, proc.LastMalformed())
	}
	if d := s.Dropped - prev.Dropped; d > 0 {
		h.log.Warnf("%d stale results dropped", d)
	}
	if d := s.Overruns - prev.Overruns; d > 0 {
		h.log.Warnf("%d blocks exceeded %.0f%% of their time budget", d, h.opts.budgetRatio*100)
	}
}

// Close discards the instance: a pending load is cancelled, the core is
// released and undelivered results are dropped. The audio driver must be
// stopped first; a closed pipeline passes audio through untouched.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	proc, cancel := h.proc, h.cancel
	h.mu.Unlock()

	if proc == nil {
		return nil
	}
	cancel()
	<-h.loadDone

	if proc.State() != Failed {
		proc.fail(ErrClosed)
	}
	if bound := proc.core.Load(); bound != nil {
		return closeCore(bound.core)
	}
	return nil
}

func closeCore(c core.Core) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
