// Package quic carries permission messages over one bidirectional QUIC
// stream as newline-delimited JSON.
package quic

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	pkgerrors "github.com/pkg/errors"

	"github.com/zeusync/glowline/internal/core/protocol"
)

var _ protocol.Conn = (*Conn)(nil)

const (
	DefaultIdleTimeout = 30 * time.Second
	DefaultKeepAlive   = 10 * time.Second
)

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
	}
}

// Conn is one QUIC connection with a single message stream. The server side
// accepts the stream lazily, on first use.
type Conn struct {
	conn *quic.Conn

	streamMu sync.Mutex
	stream   *quic.Stream
	reader   *bufio.Reader
	accept   bool

	writeMu sync.Mutex
	closed  int32
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Conn) ensureStream(ctx context.Context) (*quic.Stream, *bufio.Reader, error) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.stream != nil {
		return c.stream, c.reader, nil
	}
	var (
		s   *quic.Stream
		err error
	)
	if c.accept {
		s, err = c.conn.AcceptStream(ctx)
	} else {
		s, err = c.conn.OpenStreamSync(ctx)
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "failed to set up QUIC stream")
	}
	c.stream = s
	c.reader = bufio.NewReaderSize(s, protocol.MaxMessageSize+1)
	return c.stream, c.reader, nil
}

func (c *Conn) Send(ctx context.Context, m protocol.Message) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	s, _, err := c.ensureStream(ctx)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	_ = s.SetWriteDeadline(deadline)
	if _, err := s.Write(append(data, '\n')); err != nil {
		return pkgerrors.Wrap(err, "failed to write message")
	}
	return nil
}

// Receive reads the next line. After a Receive cut short by ctx the Conn can
// only be closed.
func (c *Conn) Receive(ctx context.Context) (protocol.Message, error) {
	if c.IsClosed() {
		return protocol.Message{}, protocol.ErrConnectionClosed
	}
	s, r, err := c.ensureStream(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Message{}, ctxErr
		}
		if c.IsClosed() || isClosedErr(err) {
			return protocol.Message{}, protocol.ErrConnectionClosed
		}
		return protocol.Message{}, err
	}
	deadline, _ := ctx.Deadline()
	_ = s.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = s.SetReadDeadline(time.Now())
	})
	defer stop()

	line, err := r.ReadSlice('\n')
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Message{}, ctxErr
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			return protocol.Message{}, protocol.ErrMessageTooLarge
		}
		if c.IsClosed() || isClosedErr(err) {
			return protocol.Message{}, protocol.ErrConnectionClosed
		}
		return protocol.Message{}, pkgerrors.Wrap(err, "failed to read message")
	}
	return protocol.Decode(line)
}

// Close tears the connection down first, which fails an AcceptStream that
// still holds streamMu.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	err := c.conn.CloseWithError(0, "bye")
	c.streamMu.Lock()
	if c.stream != nil {
		_ = c.stream.Close()
	}
	c.streamMu.Unlock()
	return err
}

func isClosedErr(err error) bool {
	var appErr *quic.ApplicationError
	var idleErr *quic.IdleTimeoutError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.As(err, &appErr) ||
		errors.As(err, &idleErr)
}
