package protocol

import (
	"fmt"
	"net"
	"sync"
)

// Conn wraps a network connection with framed, codec-encoded message
// exchange. Writes are serialized by an exclusive lock so concurrent senders
// cannot interleave frames; reads are expected from a single receive loop.
type Conn struct {
	conn    net.Conn
	codec   Codec
	maxSize uint32

	wmu sync.Mutex
}

// NewConn wraps conn. A nil codec selects JSONCodec; maxSize of 0 selects
// DefaultMaxFrameSize.
func NewConn(conn net.Conn, codec Codec, maxSize uint32) *Conn {
	if codec == nil {
		codec = JSONCodec{}
	}
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Conn{
		conn:    conn,
		codec:   codec,
		maxSize: maxSize,
	}
}

// Send serializes v and writes it as one frame. Safe for concurrent use.
func (c *Conn) Send(v any) error {
	payload, err := c.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return WriteFrame(c.conn, payload)
}

// Receive reads one frame and deserializes it into v.
func (c *Conn) Receive(v any) error {
	payload, err := ReadFrame(c.conn, c.maxSize)
	if err != nil {
		return err
	}
	if err := c.codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Close closes the underlying connection. A blocked Receive returns with an
// error once the connection is closed.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
