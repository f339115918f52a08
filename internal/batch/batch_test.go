package batch_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ales-api/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}

	// Later items finish first
	out, err := batch.Map(context.Background(), 5, items, func(ctx context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{50, 40, 30, 20, 10}, out)
}

func TestMap_RespectsLimit(t *testing.T) {
	var inFlight, peak int32
	items := batch.Range(1, 40)

	_, err := batch.Map(context.Background(), 3, items, func(ctx context.Context, id uint64) (uint64, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return id, nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestMap_Empty(t *testing.T) {
	calls := 0
	out, err := batch.Map(context.Background(), 4, []uint64{}, func(ctx context.Context, id uint64) (string, error) {
		calls++
		return "", nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, calls)
}

func TestMap_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	_, err := batch.Map(context.Background(), 2, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestRange(t *testing.T) {
	assert.Equal(t, []uint64{1, 2, 3}, batch.Range(1, 3))
	assert.Nil(t, batch.Range(1, 0))
	assert.Equal(t, []uint64{7}, batch.Range(7, 7))
}

func TestRange_EndsAtMaxUint64(t *testing.T) {
	got := batch.Range(math.MaxUint64-2, math.MaxUint64)
	assert.Equal(t, []uint64{math.MaxUint64 - 2, math.MaxUint64 - 1, math.MaxUint64}, got)
}
