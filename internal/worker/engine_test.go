package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TR14WR/Testinfotecs/internal/protocol"
	"github.com/TR14WR/Testinfotecs/internal/quadrature"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// fakeCoordinator accepts one worker connection and runs the coordinator side
// of the handshake.
type fakeCoordinator struct {
	ln       net.Listener
	conn     chan *protocol.Conn
	reported chan types.ReportedCapacity
}

func startFakeCoordinator(t *testing.T, workerID uint64) *fakeCoordinator {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fc := &fakeCoordinator{
		ln:       ln,
		conn:     make(chan *protocol.Conn, 1),
		reported: make(chan types.ReportedCapacity, 1),
	}
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			return
		}
		conn := protocol.NewConn(raw, nil, 0)
		if err := conn.Send(types.AssignedID{WorkerID: workerID}); err != nil {
			conn.Close()
			return
		}
		var reported types.ReportedCapacity
		if err := conn.Receive(&reported); err != nil {
			conn.Close()
			return
		}
		fc.reported <- reported
		fc.conn <- conn
	}()

	t.Cleanup(func() { ln.Close() })
	return fc
}

func (fc *fakeCoordinator) addr() string {
	return fc.ln.Addr().String()
}

func connectEngine(t *testing.T, fc *fakeCoordinator, lanes int) (*Engine, *protocol.Conn) {
	t.Helper()

	e := New(&Config{CoordinatorAddr: fc.addr(), Lanes: lanes, DialTimeout: time.Second})
	require.NoError(t, e.Connect(context.Background()))
	t.Cleanup(func() { e.Close() })

	conn := <-fc.conn
	t.Cleanup(func() { conn.Close() })
	return e, conn
}

func TestConnectHandshake(t *testing.T) {
	fc := startFakeCoordinator(t, 17)
	e, _ := connectEngine(t, fc, 4)

	assert.Equal(t, uint64(17), e.ID())
	assert.Equal(t, 4, e.Lanes())
	assert.Equal(t, types.ReportedCapacity{Cores: 4}, <-fc.reported)
}

func TestConnectDetectsLanes(t *testing.T) {
	fc := startFakeCoordinator(t, 1)
	e, _ := connectEngine(t, fc, 0)

	assert.Greater(t, e.Lanes(), 0)
	reported := <-fc.reported
	assert.Equal(t, uint64(e.Lanes()), reported.Cores)
}

func TestConnectRefused(t *testing.T) {
	e := New(&Config{CoordinatorAddr: "127.0.0.1:1", DialTimeout: time.Second})
	assert.Error(t, e.Connect(context.Background()))
}

func TestRunWithoutConnect(t *testing.T) {
	e := New(nil)
	assert.ErrorIs(t, e.Run(context.Background()), ErrNotConnected)
}

func TestRunAnswersTasks(t *testing.T) {
	fc := startFakeCoordinator(t, 1)
	e, coordConn := connectEngine(t, fc, 2)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	task := types.Task{LowerBound: 2, UpperBound: 3, Step: 0.001, TaskID: 5}
	require.NoError(t, coordConn.Send(task))

	var res types.Result
	require.NoError(t, coordConn.Receive(&res))
	assert.Equal(t, uint64(5), res.TaskID)

	want := quadrature.Midpoint(quadrature.LogReciprocal, 2, 3, 0.001)
	assert.InDelta(t, want, res.Value, 1e-2)

	// A clean close from the coordinator ends Run without error.
	coordConn.Close()
	assert.NoError(t, <-done)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	fc := startFakeCoordinator(t, 1)
	e, _ := connectEngine(t, fc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestExecuteSplitsAcrossLanes(t *testing.T) {
	fc := startFakeCoordinator(t, 1)
	e, _ := connectEngine(t, fc, 4)

	task := types.Task{LowerBound: 2, UpperBound: 4, Step: 0.001, TaskID: 0}
	value, err := e.Execute(task)
	require.NoError(t, err)

	whole := quadrature.Midpoint(quadrature.LogReciprocal, 2, 4, 0.001)
	assert.InDelta(t, whole, value, 1e-2)
}

func TestExecuteEmptyRange(t *testing.T) {
	fc := startFakeCoordinator(t, 1)
	e, _ := connectEngine(t, fc, 2)

	value, err := e.Execute(types.Task{LowerBound: 3, UpperBound: 3, Step: 0.001})
	require.NoError(t, err)
	assert.Zero(t, value)
}

func TestExecutePanickingIntegrand(t *testing.T) {
	fc := startFakeCoordinator(t, 1)

	e := New(&Config{
		CoordinatorAddr: fc.addr(),
		Lanes:           2,
		DialTimeout:     time.Second,
		Integrand:       func(float64) float64 { panic("bad point") },
	})
	require.NoError(t, e.Connect(context.Background()))
	t.Cleanup(func() { e.Close() })

	_, err := e.Execute(types.Task{LowerBound: 2, UpperBound: 3, Step: 0.1})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	fc := startFakeCoordinator(t, 1)
	e, _ := connectEngine(t, fc, 1)

	require.NoError(t, e.Close())
	assert.NoError(t, e.Close())
}
