package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TR14WR/Testinfotecs/pkg/logger"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// collector gathers the results of one integration request. Worker sessions
// feed it through channels; Wait is the fan-in point that blocks the caller
// until every dispatched task has reported, the deadline passes, or a worker
// holding outstanding tasks disappears.
type collector struct {
	expected int
	owners   map[uint64]uint64 // task id -> worker id

	results chan types.Result
	lost    chan uint64
}

func newCollector(expected int) *collector {
	return &collector{
		expected: expected,
		owners:   make(map[uint64]uint64, expected),
		// Buffers sized so neither senders nor session teardown can block
		// behind a slow aggregation step.
		results: make(chan types.Result, expected),
		lost:    make(chan uint64, 16),
	}
}

// own records which worker a task was dispatched to.
func (c *collector) own(taskID, workerID uint64) {
	c.owners[taskID] = workerID
}

// deliver hands one result to the aggregation step. Safe to call from any
// session receive loop.
func (c *collector) deliver(res types.Result) {
	select {
	case c.results <- res:
	default:
		// The buffer holds one slot per expected task; overflow means a
		// worker is replaying results and they would be idempotent anyway.
		logger.Warn("result buffer full, dropping duplicate",
			zap.Uint64("task_id", res.TaskID))
	}
}

// workerLost signals that a worker's connection ended.
func (c *collector) workerLost(workerID uint64) {
	select {
	case c.lost <- workerID:
	default:
	}
}

// Wait blocks until all expected results arrived and returns their sum.
// Duplicate task ids overwrite the previous value rather than double-count.
// A timeout of zero waits without a deadline.
func (c *collector) Wait(ctx context.Context, timeout time.Duration) (float64, error) {
	received := make(map[uint64]float64, c.expected)
	pending := make(map[uint64]struct{}, len(c.owners))
	for taskID := range c.owners {
		pending[taskID] = struct{}{}
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for len(pending) > 0 {
		select {
		case res := <-c.results:
			received[res.TaskID] = res.Value
			delete(pending, res.TaskID)

			logger.Info("result received",
				zap.Uint64("task_id", res.TaskID),
				zap.Int("received", len(received)),
				zap.Int("expected", c.expected))

		case workerID := <-c.lost:
			// Results the worker delivered before disconnecting are already
			// buffered; account for them before declaring its tasks lost.
			c.drainBuffered(received, pending)
			if n := c.outstanding(workerID, pending); n > 0 {
				return 0, fmt.Errorf("%w: worker %d disconnected holding %d tasks",
					ErrWorkerLost, workerID, n)
			}

		case <-deadline:
			return 0, fmt.Errorf("wait for results: timed out after %s with %d of %d outstanding",
				timeout, len(pending), c.expected)

		case <-ctx.Done():
			return 0, fmt.Errorf("wait for results: %w", ctx.Err())
		}
	}

	var sum float64
	for _, value := range received {
		sum += value
	}
	return sum, nil
}

// drainBuffered consumes every result already sitting in the buffer.
func (c *collector) drainBuffered(received map[uint64]float64, pending map[uint64]struct{}) {
	for {
		select {
		case res := <-c.results:
			received[res.TaskID] = res.Value
			delete(pending, res.TaskID)
		default:
			return
		}
	}
}

// outstanding counts pending tasks owned by workerID.
func (c *collector) outstanding(workerID uint64, pending map[uint64]struct{}) int {
	n := 0
	for taskID := range pending {
		if c.owners[taskID] == workerID {
			n++
		}
	}
	return n
}
