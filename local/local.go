// Package local provides an in-process channel pair for engines
// compiled into the same binary as their manager.
//
// Messages are handed over by pointer through bounded lock-free SPSC
// queues, with no serialization. A sender must not modify a message
// after Send.
package local

import (
	"errors"
	"fmt"
	"io"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/wire"
)

// queueCapacity bounds each direction. The protocol never has more than
// a couple of messages in flight per direction.
const queueCapacity = 16

// Compile-time interface check.
var _ eeproxy.Channel = (*Conn)(nil)

// Conn is one end of a Pipe. Send and Recv may run on different
// goroutines; each must only be used by one goroutine at a time.
type Conn struct {
	sendQ  *lfq.SPSC[*wire.Message]
	recvQ  *lfq.SPSC[*wire.Message]
	closed *atomix.Uint32
	slot   *wire.Message
}

// pipe holds both ends, both queues and the shared close counter in a
// single allocation.
type pipe struct {
	a      Conn
	b      Conn
	closed atomix.Uint32
	ab     lfq.SPSC[*wire.Message]
	ba     lfq.SPSC[*wire.Message]
}

// Pipe creates a connected pair of channels. Closing either end closes
// both: pending and future Recv calls on either side return io.EOF once
// the queued messages are drained.
func Pipe() (*Conn, *Conn) {
	p := &pipe{}
	p.ab.Init(queueCapacity)
	p.ba.Init(queueCapacity)
	p.a = Conn{sendQ: &p.ab, recvQ: &p.ba, closed: &p.closed}
	p.b = Conn{sendQ: &p.ba, recvQ: &p.ab, closed: &p.closed}
	return &p.a, &p.b
}

func (c *Conn) isClosed() bool { return c.closed.Load() > 0 }

// Send enqueues m, waiting with adaptive backoff while the queue is full.
func (c *Conn) Send(m *wire.Message) error {
	if m == nil {
		return errors.New("local: send nil message")
	}
	var bo iox.Backoff
	c.slot = m
	for {
		if c.isClosed() {
			return eeproxy.ErrSessionClosed
		}
		err := c.sendQ.Enqueue(&c.slot)
		if err == nil {
			c.slot = nil
			return nil
		}
		if !errors.Is(err, iox.ErrWouldBlock) {
			return fmt.Errorf("local: send %s: %w", m.Type, err)
		}
		bo.Wait()
	}
}

// Recv dequeues the next message, waiting with adaptive backoff while
// the queue is empty.
func (c *Conn) Recv() (*wire.Message, error) {
	var bo iox.Backoff
	for {
		m, err := c.recvQ.Dequeue()
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, iox.ErrWouldBlock) {
			return nil, fmt.Errorf("local: recv: %w", err)
		}
		if c.isClosed() {
			// Drain anything that raced with the close.
			if m, err := c.recvQ.Dequeue(); err == nil {
				return m, nil
			}
			return nil, io.EOF
		}
		bo.Wait()
	}
}

// Close closes both ends of the pipe. It never blocks and may be called
// from any goroutine.
func (c *Conn) Close() error {
	c.closed.Add(1)
	return nil
}
