package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TR14WR/Testinfotecs/pkg/types"
)

func TestCollectorSumsAllResults(t *testing.T) {
	col := newCollector(3)
	col.own(0, 1)
	col.own(1, 1)
	col.own(2, 2)

	col.deliver(types.Result{TaskID: 0, Value: 0.25})
	col.deliver(types.Result{TaskID: 1, Value: 0.5})
	col.deliver(types.Result{TaskID: 2, Value: 0.125})

	sum, err := col.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 0.875, sum, 1e-12)
}

func TestCollectorDuplicateOverwrites(t *testing.T) {
	col := newCollector(2)
	col.own(0, 1)
	col.own(1, 1)

	col.deliver(types.Result{TaskID: 0, Value: 1.0})
	col.deliver(types.Result{TaskID: 0, Value: 3.0})
	col.deliver(types.Result{TaskID: 1, Value: 2.0})

	sum, err := col.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	// Task 0 counts once, with the latest value winning.
	assert.InDelta(t, 5.0, sum, 1e-12)
}

func TestCollectorNoExpectedTasks(t *testing.T) {
	col := newCollector(0)

	sum, err := col.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestCollectorWorkerLostWithOutstanding(t *testing.T) {
	col := newCollector(2)
	col.own(0, 1)
	col.own(1, 2)

	col.deliver(types.Result{TaskID: 0, Value: 1.0})
	col.workerLost(2)

	_, err := col.Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrWorkerLost)
}

func TestCollectorWorkerLostAfterFinishing(t *testing.T) {
	col := newCollector(2)
	col.own(0, 1)
	col.own(1, 2)

	// Worker 2 reported its only task before dropping; the loss must not
	// fail the request.
	col.deliver(types.Result{TaskID: 1, Value: 2.0})
	col.workerLost(2)
	col.deliver(types.Result{TaskID: 0, Value: 1.0})

	sum, err := col.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sum, 1e-12)
}

func TestCollectorTimeout(t *testing.T) {
	col := newCollector(1)
	col.own(0, 1)

	start := time.Now()
	_, err := col.Wait(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWorkerLost)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCollectorContextCancel(t *testing.T) {
	col := newCollector(1)
	col.own(0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := col.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectorLateDelivery(t *testing.T) {
	col := newCollector(1)
	col.own(0, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		col.deliver(types.Result{TaskID: 0, Value: 4.0})
	}()

	sum, err := col.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, sum, 1e-12)
}
