// SPDX-License-Identifier: MIT

// Package transport delivers pipeline results to the visualisation layer.
// Every transport is fed from the host goroutine, never from the audio
// thread, and must not block it: slow receivers lose messages instead.
package transport

import (
	"errors"

	"spectral/internal/pipeline"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Consumer adapts a Transport to the pipeline's result consumer. Failure
// messages are forwarded too.
type Consumer struct {
	t Transport
}

// NewConsumer returns a pipeline consumer that sends through t.
func NewConsumer(t Transport) *Consumer {
	return &Consumer{t: t}
}

// Consume sends one result.
func (c *Consumer) Consume(r pipeline.Result) error {
	return c.t.Send(r)
}

// ConsumeError sends the pipeline failure message.
func (c *Consumer) ConsumeError(m pipeline.ErrorMessage) error {
	return c.t.Send(m)
}

// Multi fans every message out to several transports.
type Multi []Transport

// Send delivers data to every transport. All transports are tried; the
// errors are joined.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure the adapters satisfy their interfaces at compile time.
var (
	_ pipeline.Consumer      = (*Consumer)(nil)
	_ pipeline.ErrorConsumer = (*Consumer)(nil)
	_ Transport              = Multi(nil)
)
