package signal

import (
	"errors"
	"sync"

	"github.com/dkeye/Quiz/internal/domain"
	"github.com/dkeye/Quiz/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Conn is the outbound side of one client connection. It implements
// core.Client; frames are written by the transport's write pump.
type Conn struct {
	id     domain.ClientID
	send   chan []byte
	closer func() error

	mu     sync.RWMutex
	closed bool
}

func newConn(id domain.ClientID, buffer int, closer func() error) *Conn {
	return &Conn{
		id:     id,
		send:   make(chan []byte, buffer),
		closer: closer,
	}
}

func (c *Conn) ID() domain.ClientID { return c.id }

func (c *Conn) Send(m protocol.Outbound) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return c.TrySend(data)
}

func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.closer != nil {
		_ = c.closer()
	}
}
