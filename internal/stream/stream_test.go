package stream

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/modelmux/pkg/types"
)

func TestPipe_PreservesOrderAndCloses(t *testing.T) {
	src := make(chan types.StreamChunk)
	go func() {
		for i := 0; i < 5; i++ {
			src <- types.StreamChunk{Content: fmt.Sprintf("chunk-%d", i)}
		}
		src <- types.StreamChunk{Done: true}
		close(src)
	}()

	var cancelled atomic.Bool
	s := Pipe(src, 2, func() { cancelled.Store(true) })

	var got []types.StreamChunk
	for chunk := range s.Chunks() {
		got = append(got, chunk)
	}

	require.Len(t, got, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), got[i].Content)
	}
	assert.True(t, got[5].Done)

	assert.Eventually(t, cancelled.Load, time.Second, time.Millisecond)
}

func TestPipe_ConsumerCloseStopsPump(t *testing.T) {
	src := make(chan types.StreamChunk)
	var produced atomic.Int64
	go func() {
		defer close(src)
		for i := 0; i < 1000; i++ {
			src <- types.StreamChunk{Content: "x"}
			produced.Add(1)
		}
	}()

	var cancelled atomic.Bool
	s := Pipe(src, 4, func() { cancelled.Store(true) })

	// Read a couple of chunks and walk away.
	<-s.Chunks()
	<-s.Chunks()
	s.Close()

	assert.Eventually(t, cancelled.Load, time.Second, time.Millisecond)

	// The pump stops within one send of the close; it never drains the
	// whole source.
	assert.Less(t, produced.Load(), int64(1000))
}

func TestPipe_BoundedBufferThrottlesProducer(t *testing.T) {
	src := make(chan types.StreamChunk)
	var produced atomic.Int64
	go func() {
		defer close(src)
		for i := 0; i < 100; i++ {
			src <- types.StreamChunk{Content: "x"}
			produced.Add(1)
		}
	}()

	s := Pipe(src, 3, nil)
	defer s.Close()

	// With no consumer the pump accepts at most capacity chunks plus the
	// handful in flight across the two unbuffered handoffs.
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, produced.Load(), int64(5))
}

func TestPipe_CloseIsIdempotent(t *testing.T) {
	src := make(chan types.StreamChunk)
	close(src)

	s := Pipe(src, 1, nil)
	s.Close()
	s.Close()
}

func TestPipe_ZeroCapacityClampedToOne(t *testing.T) {
	src := make(chan types.StreamChunk, 1)
	src <- types.StreamChunk{Done: true}
	close(src)

	s := Pipe(src, 0, nil)
	chunk, ok := <-s.Chunks()
	require.True(t, ok)
	assert.True(t, chunk.Done)
	_, ok = <-s.Chunks()
	assert.False(t, ok)
}
