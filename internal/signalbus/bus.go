// Package signalbus broadcasts published signals to every subscriber. A
// slow subscriber loses signals rather than blocking the publisher.
package signalbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"signalengine/internal/model"
)

// ErrClosed is returned by Publish after Run has exited.
var ErrClosed = errors.New("signalbus: closed")

// Handler consumes one signal.
type Handler func(ctx context.Context, sig model.Signal)

type subscriber struct {
	name string
	ch   chan model.Signal
}

// Bus fans signals from one input channel out to N named subscribers.
type Bus struct {
	mu      sync.RWMutex
	outputs []subscriber
	bufSize int
	input   chan model.Signal
	done    chan struct{}
	log     *slog.Logger

	// OnDrop is called when a signal is dropped for a subscriber.
	OnDrop func(subscriber string)
}

// New creates a bus with the given buffer size for the input and each output.
func New(bufSize int, log *slog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		bufSize: bufSize,
		input:   make(chan model.Signal, bufSize),
		done:    make(chan struct{}),
		log:     log.With("component", "signalbus"),
	}
}

// Subscribe creates and returns a new output channel. Call before Run.
func (b *Bus) Subscribe(name string) <-chan model.Signal {
	ch := make(chan model.Signal, b.bufSize)
	b.mu.Lock()
	b.outputs = append(b.outputs, subscriber{name: name, ch: ch})
	b.mu.Unlock()
	return ch
}

// Attach subscribes h and runs it on its own goroutine until the bus
// closes. The returned channel is closed once h has drained.
func (b *Bus) Attach(ctx context.Context, name string, h Handler) <-chan struct{} {
	ch := b.Subscribe(name)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for sig := range ch {
			h(ctx, sig)
		}
	}()
	return finished
}

// Publish hands sig to the bus, blocking while the input buffer is full.
func (b *Bus) Publish(ctx context.Context, sig model.Signal) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.input <- sig:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run fans out published signals until ctx is cancelled, then closes every
// subscriber channel.
func (b *Bus) Run(ctx context.Context) {
	defer func() {
		close(b.done)
		b.mu.RLock()
		for _, s := range b.outputs {
			close(s.ch)
		}
		b.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-b.input:
			b.fanOut(sig)
		}
	}
}

func (b *Bus) fanOut(sig model.Signal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.outputs {
		select {
		case s.ch <- sig:
		default:
			if b.OnDrop != nil {
				b.OnDrop(s.name)
			} else {
				b.log.Warn("subscriber full, dropping signal", "subscriber", s.name, "asset", sig.Asset)
			}
		}
	}
}

// ChannelStat is the (length, capacity) of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats reports subscriber channel saturation.
func (b *Bus) ChannelStats() []ChannelStat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make([]ChannelStat, len(b.outputs))
	for i, s := range b.outputs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
