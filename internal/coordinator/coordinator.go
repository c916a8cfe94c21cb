package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TR14WR/Testinfotecs/pkg/logger"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// Config holds the coordinator settings.
type Config struct {
	// ListenAddr is the TCP address to accept worker connections on.
	ListenAddr string

	// AssignMode selects the task apportioning strategy.
	AssignMode types.AssignMode

	// ResultTimeout bounds how long Integrate waits for all results.
	// Zero waits without a deadline.
	ResultTimeout time.Duration

	// MaxFrameSize bounds accepted wire frames. Zero selects the protocol
	// default.
	MaxFrameSize uint32
}

// DefaultConfig returns a coordinator configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":12345",
		AssignMode: types.AssignModeCeil,
	}
}

// Coordinator accepts worker connections and serves integration requests,
// one at a time.
type Coordinator struct {
	cfg      *Config
	registry *Registry

	listener     net.Listener
	nextWorkerID atomic.Uint64
	inFlight     atomic.Bool

	// current is the collector of the in-flight request, nil otherwise.
	// Sessions route results and disconnects through it.
	current   *collector
	currentMu sync.RWMutex

	closeOnce sync.Once
}

// New creates a coordinator. Start must be called before workers can
// connect.
func New(cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AssignMode == "" {
		cfg.AssignMode = types.AssignModeCeil
	}
	return &Coordinator{
		cfg:      cfg,
		registry: NewRegistry(),
	}
}

// Registry exposes the worker registry for listings and tests.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Workers returns the currently registered workers.
func (c *Coordinator) Workers() []types.WorkerInfo {
	return c.registry.Workers()
}

// Addr returns the bound listen address, valid after Start.
func (c *Coordinator) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// Start binds the listen address and begins accepting worker connections in
// a background goroutine.
func (c *Coordinator) Start() error {
	ln, err := net.Listen("tcp", c.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.cfg.ListenAddr, err)
	}
	c.listener = ln

	logger.Info("coordinator listening", zap.String("addr", ln.Addr().String()))
	go c.acceptLoop()
	return nil
}

func (c *Coordinator) acceptLoop() {
	for {
		raw, err := c.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("accept failed", zap.Error(err))
			continue
		}
		go c.handleConn(raw)
	}
}

// handleConn runs the handshake for one accepted connection, registers the
// session and starts its receive loop.
func (c *Coordinator) handleConn(raw net.Conn) {
	workerID := c.nextWorkerID.Add(1)

	session, err := newSession(raw, workerID, c.cfg.MaxFrameSize)
	if err != nil {
		logger.Error("worker handshake failed",
			zap.Uint64("worker_id", workerID),
			zap.String("remote", raw.RemoteAddr().String()),
			zap.Error(err))
		return
	}

	if err := c.registry.Register(session); err != nil {
		logger.Error("worker registration failed",
			zap.Uint64("worker_id", workerID),
			zap.Error(err))
		session.Close()
		return
	}

	logger.Info("worker connected",
		zap.Uint64("worker_id", workerID),
		zap.String("remote", session.RemoteAddr()),
		zap.Uint64("cores", session.Cores()))

	go session.receiveLoop(c.deliver, c.handleSessionClose)
}

// deliver routes one result into the in-flight request's collector. Results
// arriving with no request in flight are dropped.
func (c *Coordinator) deliver(workerID uint64, res types.Result) {
	c.currentMu.RLock()
	col := c.current
	c.currentMu.RUnlock()

	if col == nil {
		logger.Warn("dropping result with no request in flight",
			zap.Uint64("worker_id", workerID),
			zap.Uint64("task_id", res.TaskID))
		return
	}
	col.deliver(res)
}

// handleSessionClose removes a departed worker and notifies the in-flight
// request, if any.
func (c *Coordinator) handleSessionClose(workerID uint64) {
	c.registry.Unregister(workerID)
	logger.Info("worker disconnected", zap.Uint64("worker_id", workerID))

	c.currentMu.RLock()
	col := c.current
	c.currentMu.RUnlock()

	if col != nil {
		col.workerLost(workerID)
	}
}

func (c *Coordinator) setCurrent(col *collector) {
	c.currentMu.Lock()
	c.current = col
	c.currentMu.Unlock()
}

// Integrate computes the integral of the configured function over
// [lower, upper) at the given step by partitioning the range across the
// registered workers in proportion to their capacity and summing their
// partial results. It blocks until every dispatched task has reported, the
// configured deadline passes, or ctx is cancelled.
//
// With no registered workers, or zero total capacity, or an empty partition,
// it returns 0 without dispatching anything. A call while another request is
// in flight returns ErrRequestInFlight.
func (c *Coordinator) Integrate(ctx context.Context, lower, upper, step float64) (float64, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return 0, ErrRequestInFlight
	}
	defer c.inFlight.Store(false)

	requestID := uuid.New().String()[:8]
	log := logger.L().With(zap.String("request_id", requestID))

	log.Info("integration request",
		zap.Float64("lower", lower),
		zap.Float64("upper", upper),
		zap.Float64("step", step))

	sessions := c.registry.Snapshot()
	if len(sessions) == 0 {
		log.Warn("no workers registered, returning zero")
		return 0.0, nil
	}

	var totalCores uint64
	shares := make([]WorkerShare, len(sessions))
	for i, s := range sessions {
		shares[i] = WorkerShare{ID: s.ID(), Cores: s.Cores()}
		totalCores += s.Cores()
	}
	if totalCores == 0 {
		log.Warn("total worker capacity is zero, returning zero")
		return 0.0, nil
	}

	tasks := PartitionRange(lower, upper, step, int(totalCores))
	if len(tasks) == 0 {
		log.Warn("empty partition, returning zero")
		return 0.0, nil
	}

	counts := Assign(shares, len(tasks), totalCores, c.cfg.AssignMode)

	col := newCollector(len(tasks))
	c.setCurrent(col)
	defer c.setCurrent(nil)

	log.Info("dispatching tasks",
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", len(sessions)),
		zap.Uint64("total_cores", totalCores),
		zap.String("assign_mode", string(c.cfg.AssignMode)))

	next := 0
	for i, s := range sessions {
		for j := 0; j < counts[i] && next < len(tasks); j++ {
			task := tasks[next]
			col.own(task.TaskID, s.ID())
			if err := s.SendTask(task); err != nil {
				// A failed send means the worker will never answer; fail
				// the request instead of blocking on a task nobody holds.
				log.Error("task dispatch failed",
					zap.Uint64("worker_id", s.ID()),
					zap.Uint64("task_id", task.TaskID),
					zap.Error(err))
				s.Close()
				return 0, err
			}
			next++
		}
		log.Info("tasks assigned",
			zap.Uint64("worker_id", s.ID()),
			zap.Uint64("cores", s.Cores()),
			zap.Int("count", counts[i]))
	}

	final, err := col.Wait(ctx, c.cfg.ResultTimeout)
	if err != nil {
		return 0, err
	}

	log.Info("integration complete", zap.Float64("result", final))
	return final, nil
}

// Close stops accepting connections and closes all worker sessions.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.listener != nil {
			err = c.listener.Close()
		}
		for _, s := range c.registry.Snapshot() {
			s.Close()
		}
	})
	return err
}
