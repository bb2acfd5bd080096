package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFOOrder(t *testing.T) {
	q := New(4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, Request{ReqPipe: string(rune('a' + i))}))
	}
	assert.Equal(t, 3, q.Depth())

	for i := 0; i < 3; i++ {
		req, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, string(rune('a'+i)), req.ReqPipe)
	}
	assert.Equal(t, 0, q.Depth())
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := New(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Request{ReqPipe: "first"}))

	blocked := make(chan struct{})
	go func() {
		q.Enqueue(ctx, Request{ReqPipe: "second"})
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("Enqueue should have blocked on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not unblock after a Dequeue freed a slot")
	}
}

func TestDequeueBlocksWhenEmpty(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCapacityReported(t *testing.T) {
	q := New(10)
	assert.Equal(t, 10, q.Capacity())
}
