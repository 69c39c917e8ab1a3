package channel

import (
	"context"
	"sync"

	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
)

// PipeConn is one end of an in-process channel created by Pipe.
type PipeConn struct {
	in        chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once
	peer      *PipeConn
}

// Pipe returns two connected ends. Every Send is delivered from its own
// goroutine, so two sends may arrive in either order.
func Pipe() (*PipeConn, *PipeConn) {
	a := &PipeConn{in: make(chan protocol.Message), done: make(chan struct{})}
	b := &PipeConn{in: make(chan protocol.Message), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeConn) Send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed() || p.peer.closed() {
		return ErrClosed
	}
	go func() {
		select {
		case p.peer.in <- msg:
		case <-p.peer.done:
		case <-p.done:
		}
	}()
	return nil
}

func (p *PipeConn) Receive(ctx context.Context) (protocol.Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return protocol.Message{}, ErrClosed
	case <-p.peer.done:
		return protocol.Message{}, ErrClosed
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (p *PipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *PipeConn) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
