// Package channel carries protocol messages between the two contexts.
//
// Delivery is asynchronous, unordered and at-most-once: a Send that returned
// nil may still be lost if either side closes before delivery.
package channel

import (
	"context"
	"errors"

	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

var ErrClosed = errors.New("channel closed")

// Conn is one side of a bidirectional message channel. Send never waits for
// the peer to receive. Receive blocks until a message arrives, the
// connection closes, or ctx is done.
type Conn interface {
	Send(ctx context.Context, msg protocol.Message) error
	Receive(ctx context.Context) (protocol.Message, error)
	Close() error
}

// Scope wraps conn so outgoing messages are stamped with protocol.Source and
// window, and incoming messages from another source or another window are
// dropped. An empty window accepts every window and leaves the window of
// outgoing messages untouched, which is what the privileged side needs.
func Scope(conn Conn, window string) Conn {
	return &scopedConn{Conn: conn, window: window}
}

type scopedConn struct {
	Conn
	window string
}

func (c *scopedConn) Send(ctx context.Context, msg protocol.Message) error {
	msg.Source = protocol.Source
	if c.window != "" {
		msg.Window = c.window
	}
	return c.Conn.Send(ctx, msg)
}

func (c *scopedConn) Receive(ctx context.Context) (protocol.Message, error) {
	for {
		msg, err := c.Conn.Receive(ctx)
		if err != nil {
			return protocol.Message{}, err
		}
		if msg.Source != protocol.Source {
			log.Debug("Dropping message from foreign source %q", msg.Source)
			continue
		}
		if c.window != "" && msg.Window != c.window {
			log.Debug("Dropping %s addressed to window %q", msg.Type, msg.Window)
			continue
		}
		return msg, nil
	}
}
