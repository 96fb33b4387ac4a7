// ws wraps a server-side websocket connection in a pair of channels, so
// handlers can read and write messages without touching the connection's
// single-reader/single-writer rules directly.
package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// channelBuffer is the capacity of the channels between the pumps and the
// caller in each direction.
const channelBuffer = 16

// ErrClosed is returned by Sender.Send after the connection has closed.
var ErrClosed = errors.New("websocket closed")

// Message is one websocket message: its type (websocket.TextMessage,
// websocket.BinaryMessage, ...) and payload.
type Message struct {
	Type int
	Data []byte
}

// Text builds a text message.
func Text(s string) Message {
	return Message{Type: websocket.TextMessage, Data: []byte(s)}
}

// Binary builds a binary message.
func Binary(b []byte) Message {
	return Message{Type: websocket.BinaryMessage, Data: b}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Start performs the websocket handshake and returns the connection's two
// halves. The Sender may be shared across goroutines; the Receiver must be
// drained by a single goroutine. Both ends observe the connection closing:
// the Receiver's channel is closed, and Send returns ErrClosed.
//
// Start writes the handshake response itself, so the caller must not touch w
// afterwards.
func Start(w http.ResponseWriter, r *http.Request) (*Sender, *Receiver, error) {
	const op = "ws.Start"
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an error status
		return nil, nil, fmt.Errorf("%s: handshake failed: %w", op, err)
	}

	c := &wsConn{
		conn:     conn,
		outbound: make(chan Message, channelBuffer),
		inbound:  make(chan Message, channelBuffer),
		done:     make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()

	return &Sender{c: c}, &Receiver{c: c}, nil
}

type wsConn struct {
	conn     *websocket.Conn
	outbound chan Message
	inbound  chan Message
	done     chan struct{}
	closing  sync.Once
}

func (c *wsConn) close() {
	c.closing.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump owns the connection's read side. It forwards messages to the
// inbound channel until the peer disconnects or the connection errors, then
// tears the connection down.
func (c *wsConn) readPump() {
	defer c.close()
	defer close(c.inbound)
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.inbound <- Message{Type: typ, Data: data}:
		case <-c.done:
			return
		}
	}
}

// writePump owns the connection's write side.
func (c *wsConn) writePump() {
	for {
		select {
		case msg := <-c.outbound:
			if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
				c.close()
				return
			}
			if msg.Type == websocket.CloseMessage {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Sender is the writing half of a websocket connection. It is safe for
// concurrent use.
type Sender struct {
	c *wsConn
}

// Send queues msg for delivery, blocking while the outbound buffer is full.
// It returns ErrClosed once the connection is gone.
func (s *Sender) Send(msg Message) error {
	const op = "ws.(Sender).Send"
	select {
	case <-s.c.done:
		return fmt.Errorf("%s: %w", op, ErrClosed)
	default:
	}
	select {
	case s.c.outbound <- msg:
		return nil
	case <-s.c.done:
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
}

// Close performs the closing handshake and releases the connection. It
// returns once the close frame is on the wire (or the connection is already
// gone). Closing an already-closed connection is not an error.
func (s *Sender) Close() error {
	data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := s.Send(Message{Type: websocket.CloseMessage, Data: data})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	// the write pump tears the connection down after writing a close frame
	<-s.c.done
	return err
}

// Receiver is the reading half of a websocket connection. Recv must be
// called from a single goroutine.
type Receiver struct {
	c *wsConn
}

// Recv returns the next message from the peer. It reports false once the
// connection has closed and no messages remain.
func (r *Receiver) Recv() (Message, bool) {
	msg, ok := <-r.c.inbound
	return msg, ok
}

// Chan exposes the inbound channel directly, for select loops. The channel
// is closed when the connection closes.
func (r *Receiver) Chan() <-chan Message {
	return r.c.inbound
}
