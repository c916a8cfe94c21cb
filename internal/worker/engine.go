package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/TR14WR/Testinfotecs/internal/protocol"
	"github.com/TR14WR/Testinfotecs/internal/quadrature"
	"github.com/TR14WR/Testinfotecs/pkg/logger"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// ErrNotConnected is returned by Run before a successful Connect.
var ErrNotConnected = errors.New("worker: not connected to coordinator")

// Config holds the worker engine settings.
type Config struct {
	// CoordinatorAddr is the coordinator's TCP address.
	CoordinatorAddr string

	// Lanes is the number of local execution lanes. Zero means detect from
	// runtime.NumCPU.
	Lanes int

	// DialTimeout bounds the connection attempt.
	DialTimeout time.Duration

	// MaxFrameSize bounds accepted wire frames. Zero selects the protocol
	// default.
	MaxFrameSize uint32

	// Integrand overrides the function to integrate. Nil selects
	// quadrature.LogReciprocal.
	Integrand quadrature.Integrand
}

// DefaultConfig returns a worker configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		CoordinatorAddr: "127.0.0.1:12345",
		DialTimeout:     10 * time.Second,
	}
}

// Engine owns one connection to the coordinator and executes the tasks
// received over it.
type Engine struct {
	cfg  *Config
	fn   quadrature.Integrand
	conn *protocol.Conn

	id    uint64
	lanes int
	pool  *ants.Pool
	stats *Stats

	closeOnce sync.Once
}

// New creates an engine. Connect must be called before Run.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	fn := cfg.Integrand
	if fn == nil {
		fn = quadrature.LogReciprocal
	}
	return &Engine{
		cfg:   cfg,
		fn:    fn,
		stats: NewStats(),
	}
}

// Connect establishes the coordinator connection and performs the handshake:
// receive the assigned worker id, then send the locally detected lane count.
// A detection result of zero is substituted with 1 and logged as degraded.
func (e *Engine) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: e.cfg.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", e.cfg.CoordinatorAddr)
	if err != nil {
		return fmt.Errorf("connect to coordinator %s: %w", e.cfg.CoordinatorAddr, err)
	}
	conn := protocol.NewConn(raw, nil, e.cfg.MaxFrameSize)

	var assigned types.AssignedID
	if err := conn.Receive(&assigned); err != nil {
		conn.Close()
		return fmt.Errorf("receive assigned id: %w", err)
	}
	e.id = assigned.WorkerID

	lanes := e.cfg.Lanes
	if lanes == 0 {
		lanes = runtime.NumCPU()
	}
	if lanes <= 0 {
		lanes = 1
		logger.Warn("lane detection yielded zero, running with degraded capacity",
			zap.Uint64("worker_id", e.id))
	}
	e.lanes = lanes

	if err := conn.Send(types.ReportedCapacity{Cores: uint64(lanes)}); err != nil {
		conn.Close()
		return fmt.Errorf("report capacity: %w", err)
	}

	pool, err := ants.NewPool(lanes)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create lane pool: %w", err)
	}

	e.conn = conn
	e.pool = pool

	logger.Info("connected to coordinator",
		zap.Uint64("worker_id", e.id),
		zap.String("coordinator", e.cfg.CoordinatorAddr),
		zap.Int("lanes", lanes))
	return nil
}

// ID returns the coordinator-assigned worker id.
func (e *Engine) ID() uint64 {
	return e.id
}

// Lanes returns the local execution lane count reported at handshake.
func (e *Engine) Lanes() int {
	return e.lanes
}

// Run receives tasks until the connection ends and answers each with one
// Result. It returns nil when the coordinator closes the connection and an
// error on any other transport or execution failure. The engine never
// reconnects on its own.
func (e *Engine) Run(ctx context.Context) error {
	if e.conn == nil {
		return ErrNotConnected
	}

	// Unblock the receive loop when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { e.conn.Close() })
	defer stop()

	for {
		var task types.Task
		if err := e.conn.Receive(&task); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("coordinator closed the connection", zap.Uint64("worker_id", e.id))
				return nil
			}
			logger.Error("receive task failed", zap.Uint64("worker_id", e.id), zap.Error(err))
			return fmt.Errorf("receive task: %w", err)
		}

		logger.Info("task received",
			zap.Uint64("worker_id", e.id),
			zap.Uint64("task_id", task.TaskID),
			zap.Float64("lower", task.LowerBound),
			zap.Float64("upper", task.UpperBound),
			zap.Float64("step", task.Step))

		started := time.Now()
		value, err := e.Execute(task)
		if err != nil {
			logger.Error("task execution failed",
				zap.Uint64("worker_id", e.id),
				zap.Uint64("task_id", task.TaskID),
				zap.Error(err))
			return fmt.Errorf("execute task %d: %w", task.TaskID, err)
		}
		e.stats.Record(time.Since(started))

		result := types.Result{Value: value, TaskID: task.TaskID}
		if err := e.conn.Send(result); err != nil {
			logger.Error("send result failed",
				zap.Uint64("worker_id", e.id),
				zap.Uint64("task_id", task.TaskID),
				zap.Error(err))
			return fmt.Errorf("send result %d: %w", task.TaskID, err)
		}

		logger.Info("result sent",
			zap.Uint64("worker_id", e.id),
			zap.Uint64("task_id", task.TaskID),
			zap.Float64("value", value))
	}
}

// Execute computes one task: the task range is split into lane-count equal
// sub-ranges, each integrated concurrently on the lane pool, and the lane
// sums are joined into one value. All lanes must finish before the value is
// returned; a panicking lane fails the whole task.
func (e *Engine) Execute(task types.Task) (float64, error) {
	ranges := quadrature.SplitRange(task.LowerBound, task.UpperBound, e.lanes)
	if len(ranges) == 0 {
		// Non-positive range or step contributes nothing, by the same
		// modeling choice the integrand makes at singular points.
		return 0.0, nil
	}

	var (
		mu      sync.Mutex
		sum     float64
		laneErr error
		wg      sync.WaitGroup
	)

	for _, r := range ranges {
		r := r
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					mu.Lock()
					laneErr = fmt.Errorf("lane panic on [%v, %v): %v", r.Lower, r.Upper, rec)
					mu.Unlock()
				}
			}()

			partial := quadrature.Midpoint(e.fn, r.Lower, r.Upper, task.Step)

			mu.Lock()
			sum += partial
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			return 0, fmt.Errorf("submit lane: %w", err)
		}
	}

	wg.Wait()

	if laneErr != nil {
		return 0, laneErr
	}
	return sum, nil
}

// Close releases the lane pool and closes the connection, logging the task
// duration statistics collected during the session.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.pool != nil {
			e.pool.Release()
		}
		if e.conn != nil {
			err = e.conn.Close()
		}
		if snap := e.stats.Snapshot(); snap.Count > 0 {
			logger.Info("task duration stats",
				zap.Uint64("worker_id", e.id),
				zap.Int64("tasks", snap.Count),
				zap.Duration("min", snap.Min),
				zap.Duration("max", snap.Max),
				zap.Duration("p50", snap.P50),
				zap.Duration("p99", snap.P99))
		}
	})
	return err
}
