package channel

import (
	"context"
	"errors"
	"net"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
)

// readLimit bounds one frame; a cache snapshot is the largest message.
const readLimit = 4 << 20

// WSConn carries messages as JSON text frames over a websocket.
type WSConn struct {
	conn *websocket.Conn
}

// Dial connects to a privileged server's channel endpoint.
func Dial(ctx context.Context, url string) (*WSConn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return &WSConn{conn: conn}, nil
}

// Accept upgrades an incoming request to a channel connection.
func Accept(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return &WSConn{conn: conn}, nil
}

func (c *WSConn) Send(ctx context.Context, msg protocol.Message) error {
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return closedOr(err)
	}
	return nil
}

func (c *WSConn) Receive(ctx context.Context) (protocol.Message, error) {
	var msg protocol.Message
	if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
		return protocol.Message{}, closedOr(err)
	}
	return msg, nil
}

func (c *WSConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func closedOr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return ErrClosed
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
