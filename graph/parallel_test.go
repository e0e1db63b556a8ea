package graph_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/crag/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapParallel_PreservesOrder(t *testing.T) {
	t.Parallel()

	items := []int{5, 1, 4, 2, 3}
	out, err := graph.MapParallel(context.Background(), items, 0, func(_ context.Context, n int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, out)
}

func TestMapParallel_RunsConcurrently(t *testing.T) {
	t.Parallel()

	const n = 8
	var inFlight, peak atomic.Int32
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := graph.MapParallel(context.Background(), make([]int, n), 0, func(context.Context, int) (int, error) {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return 0, nil
		})
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return peak.Load() == n }, time.Second, time.Millisecond)
	close(release)
	<-done
}

func TestMapParallel_Limit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	_, err := graph.MapParallel(context.Background(), make([]int, 10), 2, func(context.Context, int) (int, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMapParallel_ErrorWaitsForAll(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var finished atomic.Int32

	out, err := graph.MapParallel(context.Background(), []int{0, 1, 2, 3}, 0, func(_ context.Context, n int) (int, error) {
		if n == 1 {
			return 0, boom
		}
		time.Sleep(5 * time.Millisecond)
		finished.Add(1)
		return n, nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Equal(t, int32(3), finished.Load(), "siblings are not cancelled")
}

func TestMapParallel_RecoversPanics(t *testing.T) {
	t.Parallel()

	_, err := graph.MapParallel(context.Background(), []int{1}, 0, func(context.Context, int) (int, error) {
		panic("bad item")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad item")
}

func TestMapParallel_Empty(t *testing.T) {
	t.Parallel()

	out, err := graph.MapParallel(context.Background(), []string{}, 0, func(context.Context, string) (bool, error) {
		t.Fatal("must not be called")
		return false, nil
	})

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMapSequential(t *testing.T) {
	t.Parallel()

	var calls int
	out, err := graph.MapSequential(context.Background(), []string{"a", "b"}, func(_ context.Context, s string) (string, error) {
		calls++
		return s + s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, out)
	assert.Equal(t, 2, calls)

	boom := errors.New("boom")
	calls = 0
	_, err = graph.MapSequential(context.Background(), []string{"a", "b"}, func(context.Context, string) (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
