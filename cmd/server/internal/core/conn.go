package core

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hasirciogluhq/xtransform-server/pkg/wire"
)

// Conn is the handle for one accepted client session. Its socket is read and
// written only by the worker that serves it; MarkDead and Close are the only
// methods other goroutines call.
type Conn struct {
	session string
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	log     *slog.Logger

	alive     atomic.Bool
	closeOnce sync.Once

	mu      sync.Mutex
	history []string
}

// NewConn wraps an accepted socket. The handle is alive on return.
func NewConn(c net.Conn, log *slog.Logger) *Conn {
	session := uuid.NewString()
	h := &Conn{
		session: session,
		conn:    c,
		reader:  bufio.NewReader(c),
		writer:  bufio.NewWriter(c),
		log:     log.With("session", session, "client", c.RemoteAddr().String()),
	}
	h.alive.Store(true)
	return h
}

// Session is the unique identifier assigned at accept time.
func (c *Conn) Session() string { return c.session }

// RemoteAddr is the peer end of the socket.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// ReceiveRequest blocks for the next request. ok is false when the peer is
// gone; the handle is marked dead in that case and no further I/O is attempted.
func (c *Conn) ReceiveRequest() (request string, ok bool) {
	if !c.IsAlive() {
		return "", false
	}
	request, err := wire.ReadMessage(c.reader)
	if err != nil {
		if c.IsAlive() {
			c.log.Info("Client connection lost", "error", err)
		}
		c.MarkDead()
		return "", false
	}
	return request, true
}

// SendResponse writes one response. A failed write is logged and leaves the
// liveness flag alone; the next read reports the broken peer.
func (c *Conn) SendResponse(response string) {
	if !c.IsAlive() {
		return
	}
	if err := wire.WriteMessage(c.writer, response); err != nil {
		c.log.Warn("Failed to send response", "error", err)
	}
}

// RecordRequest appends request to the history.
func (c *Conn) RecordRequest(request string) {
	c.mu.Lock()
	c.history = append(c.history, request)
	c.mu.Unlock()
}

// History returns a copy of the recorded requests in arrival order.
func (c *Conn) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.history))
	copy(out, c.history)
	return out
}

// HistoryLen is the number of recorded requests.
func (c *Conn) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// MarkDead clears the liveness flag. Safe to call repeatedly from any goroutine.
func (c *Conn) MarkDead() {
	c.alive.Store(false)
}

// IsAlive reports the liveness flag.
func (c *Conn) IsAlive() bool {
	return c.alive.Load()
}

// Close marks the handle dead and closes the socket once, unblocking a
// pending read.
func (c *Conn) Close() error {
	c.MarkDead()
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) status() ClientStatus {
	return ClientStatus{
		Session:  c.session,
		Remote:   c.conn.RemoteAddr().String(),
		Requests: c.HistoryLen(),
	}
}

func (c *Conn) String() string {
	return fmt.Sprintf("Client{port - %s, remote address - %s, history size - %d}",
		portOf(c.conn.LocalAddr()), c.conn.RemoteAddr(), c.HistoryLen())
}

func portOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return port
}
