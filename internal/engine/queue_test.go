package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_EnqueueDequeue(t *testing.T) {
	q := newTaskQueue()

	require.True(t, q.Enqueue(job{name: "persist counter", seq: 1}))

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "persist counter", got.name)
	assert.Equal(t, int64(1), got.seq)
}

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	for _, name := range []string{"a", "b", "c"} {
		q.Enqueue(job{name: name})
	}

	var order []string
	for {
		j, ok := q.TryDequeue()
		if !ok {
			break
		}
		order = append(order, j.name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTaskQueue_TryDequeue_Empty(t *testing.T) {
	q := newTaskQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTaskQueue_WaitSignals(t *testing.T) {
	q := newTaskQueue()

	done := make(chan job)
	go func() {
		<-q.Wait()
		j, ok := q.TryDequeue()
		if ok {
			done <- j
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(job{name: "late"})

	select {
	case j := <-done:
		assert.Equal(t, "late", j.name)
	case <-time.After(time.Second):
		t.Fatal("waiter was not signalled")
	}
}

func TestTaskQueue_Close(t *testing.T) {
	q := newTaskQueue()
	q.Enqueue(job{name: "pending"})
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(job{name: "rejected"}))

	_, open := <-q.Wait()
	assert.False(t, open)

	j, ok := q.TryDequeue()
	require.True(t, ok, "jobs queued before close stay available")
	assert.Equal(t, "pending", j.name)
}

func TestTaskQueue_Len(t *testing.T) {
	q := newTaskQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(job{name: "a"})
	q.Enqueue(job{name: "b"})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestTaskQueue_ConcurrentEnqueue(t *testing.T) {
	q := newTaskQueue()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				q.Enqueue(job{name: fmt.Sprintf("w%d-%d", w, i)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, q.Len())
}
