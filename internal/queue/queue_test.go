package queue

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	_, err := New[int](1, 10)
	assert.Error(t, err)
	_, err = New[int](2, -1)
	assert.Error(t, err)
	q, err := New[int](2, 0)
	require.NoError(t, err)
	_, err = q.Pop()
	assert.ErrorIs(t, err, ErrDrained)
}

func TestFIFO(t *testing.T) {
	q, err := New[int](4, 4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 4, q.Stats().Occupied)
	for i := 0; i < 4; i++ {
		v, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Drained())

	_, err = q.Pop()
	assert.ErrorIs(t, err, ErrDrained)
	assert.ErrorIs(t, q.Push(5), ErrOverflow)
}

func TestPushBlocksWhenFull(t *testing.T) {
	q, err := New[int](2, 3)
	require.NoError(t, err)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))

	done := make(chan error, 1)
	go func() { done <- q.Push(3) }()

	select {
	case <-done:
		t.Fatal("push into a full queue did not block")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, q.Stats().PushWaits, uint64(1))
}

func TestPopBlocksWhenEmpty(t *testing.T) {
	q, err := New[string](2, 1)
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		v, err := q.Pop()
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("pop from an empty queue did not block")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, q.Push("block"))
	assert.Equal(t, "block", <-got)
}

func TestAbortWakesWaiters(t *testing.T) {
	q, err := New[int](2, 10)
	require.NoError(t, err)

	cause := errors.New("read failed")
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop()
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	q.Abort(cause)
	q.Abort(errors.New("second cause is ignored"))
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrAborted)
		assert.ErrorIs(t, err, cause)
	}
	assert.ErrorIs(t, q.Push(1), cause)
}

func TestDrain(t *testing.T) {
	q, err := New[int](3, 5)
	require.NoError(t, err)
	require.NoError(t, q.Push(7))
	require.NoError(t, q.Push(8))
	q.Abort(nil)
	assert.Equal(t, []int{7, 8}, q.Drain())
	assert.Equal(t, 0, q.Stats().Occupied)
	assert.False(t, q.Drained())
	assert.ErrorIs(t, q.Push(9), ErrAborted)
}

// TestOccupancyBounded runs producers and consumers with random delays and
// checks that occupancy stays within [0, capacity] and every item arrives once.
func TestOccupancyBounded(t *testing.T) {
	for _, tc := range []struct{ capacity, producers, consumers, total int }{
		{2, 1, 1, 200},
		{2, 4, 1, 300},
		{3, 1, 5, 300},
		{5, 3, 3, 500},
	} {
		q, err := New[int](tc.capacity, tc.total)
		require.NoError(t, err)

		var next atomic.Int64
		var violations atomic.Int64
		seen := make([]atomic.Int32, tc.total)
		var wg sync.WaitGroup

		for p := 0; p < tc.producers; p++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(seed))
				for {
					i := int(next.Add(1) - 1)
					if i >= tc.total {
						return
					}
					if rng.Intn(4) == 0 {
						time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)
					}
					if err := q.Push(i); err != nil {
						t.Errorf("push: %v", err)
						return
					}
					if n := q.Stats().Occupied; n < 0 || n > tc.capacity {
						violations.Add(1)
					}
				}
			}(int64(p))
		}
		for c := 0; c < tc.consumers; c++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(seed))
				for {
					v, err := q.Pop()
					if errors.Is(err, ErrDrained) {
						return
					}
					if err != nil {
						t.Errorf("pop: %v", err)
						return
					}
					seen[v].Add(1)
					if n := q.Stats().Occupied; n < 0 || n > tc.capacity {
						violations.Add(1)
					}
					if rng.Intn(4) == 0 {
						time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)
					}
				}
			}(int64(100 + c))
		}
		wg.Wait()

		stats := q.Stats()
		assert.Zero(t, violations.Load())
		assert.LessOrEqual(t, stats.HighWater, tc.capacity)
		assert.Equal(t, tc.total, stats.Produced)
		assert.Equal(t, tc.total, stats.Consumed)
		for i := range seen {
			require.Equal(t, int32(1), seen[i].Load(), "item %d", i)
		}
	}
}
