// Package stream interposes a bounded conduit between a provider's
// native stream and the consumer so a slow consumer throttles the
// producer instead of buffering unboundedly.
package stream

import (
	"sync"

	"github.com/modelmux/modelmux/pkg/types"
)

// Stream is the consumer's end of the bounded conduit. Chunks arrive in
// provider order; the channel is closed after the final chunk. A
// consumer that is done before the stream ends must call Close so the
// pump can release provider-side resources.
type Stream struct {
	ch        chan types.StreamChunk
	done      chan struct{}
	closeOnce sync.Once
}

// Pipe starts a pump goroutine copying src into a conduit of the given
// capacity. When the conduit is full the pump blocks, which blocks the
// provider's own stream in turn. cancel is invoked once the pump exits,
// whether the source ended or the consumer closed its end; pass the
// CancelFunc governing the provider call so its resources are released.
func Pipe(src <-chan types.StreamChunk, capacity int, cancel func()) *Stream {
	if capacity < 1 {
		capacity = 1
	}
	s := &Stream{
		ch:   make(chan types.StreamChunk, capacity),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.ch)
		if cancel != nil {
			defer cancel()
		}
		for chunk := range src {
			select {
			case s.ch <- chunk:
			case <-s.done:
				// Consumer dropped its end; stop pumping. The deferred
				// cancel unblocks the provider's producer.
				return
			}
		}
	}()

	return s
}

// Chunks returns the receive channel. It is closed when the stream
// ends or after Close.
func (s *Stream) Chunks() <-chan types.StreamChunk {
	return s.ch
}

// Close signals the pump to stop. It is the cancellation path for a
// consumer that stops reading mid-stream; the pump observes it on its
// next send attempt. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
