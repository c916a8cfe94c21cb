package coordinator

import (
	"fmt"
	"net"
	"runtime"

	"go.uber.org/zap"

	"github.com/TR14WR/Testinfotecs/internal/protocol"
	"github.com/TR14WR/Testinfotecs/pkg/logger"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// Session is the coordinator-side proxy for one connected worker. Task sends
// are serialized by the underlying connection's write lock; inbound results
// are pushed to the coordinator's delivery path by a dedicated receive loop.
type Session struct {
	id    uint64
	cores uint64
	conn  *protocol.Conn
	addr  string
}

// newSession performs the coordinator side of the handshake on an accepted
// connection: send the assigned worker id, then receive the worker's
// reported capacity. A reported zero is substituted with this host's CPU
// count and logged.
func newSession(raw net.Conn, workerID uint64, maxFrameSize uint32) (*Session, error) {
	conn := protocol.NewConn(raw, nil, maxFrameSize)

	if err := conn.Send(types.AssignedID{WorkerID: workerID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send assigned id: %w", err)
	}

	var reported types.ReportedCapacity
	if err := conn.Receive(&reported); err != nil {
		conn.Close()
		return nil, fmt.Errorf("receive reported capacity: %w", err)
	}

	cores := reported.Cores
	if cores == 0 {
		cores = uint64(runtime.NumCPU())
		logger.Warn("worker reported zero capacity, substituting host capacity",
			zap.Uint64("worker_id", workerID),
			zap.Uint64("cores", cores))
	}

	return &Session{
		id:    workerID,
		cores: cores,
		conn:  conn,
		addr:  raw.RemoteAddr().String(),
	}, nil
}

// ID returns the assigned worker id.
func (s *Session) ID() uint64 {
	return s.id
}

// Cores returns the worker's capacity as recorded at handshake.
func (s *Session) Cores() uint64 {
	return s.cores
}

// RemoteAddr returns the worker's remote address.
func (s *Session) RemoteAddr() string {
	return s.addr
}

// SendTask writes one task to the worker. Concurrent calls are serialized by
// the connection so frames never interleave.
func (s *Session) SendTask(task types.Task) error {
	if err := s.conn.Send(task); err != nil {
		return fmt.Errorf("send task %d to worker %d: %w", task.TaskID, s.id, err)
	}
	return nil
}

// Close closes the worker connection, ending its receive loop.
func (s *Session) Close() error {
	return s.conn.Close()
}

// receiveLoop reads results for the lifetime of the connection, forwarding
// each to deliver. It ends silently on disconnect, reporting the closure
// through onClose exactly once.
func (s *Session) receiveLoop(deliver func(workerID uint64, res types.Result), onClose func(workerID uint64)) {
	defer onClose(s.id)

	for {
		var res types.Result
		if err := s.conn.Receive(&res); err != nil {
			logger.Debug("worker receive loop ended",
				zap.Uint64("worker_id", s.id),
				zap.Error(err))
			return
		}
		deliver(s.id, res)
	}
}
