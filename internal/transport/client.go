// Package transport implements the TCP endpoints: a reconnecting
// client driven by a single owned goroutine, and a listening server
// that spawns one goroutine per accepted connection. Both replace the
// source's non-blocking-socket-plus-select state machine with Go's
// native blocking I/O and goroutines, per spec §9's invitation to swap
// concurrency primitives while preserving the observable state
// transitions.
package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/framing"
)

const (
	// dialRetryInterval is how long CONNECT waits before retrying a
	// failed dial.
	dialRetryInterval = 1 * time.Second
	// idleTick is the cadence on_idle() fires at, per spec §4.2/§4.4.
	idleTick = 250 * time.Millisecond
	readBufSize = 16 * 1024
)

// ClientCallbacks are the hooks the client's INIT/CONNECT/RECEIVE loop
// invokes. OnIdle fires once per tick regardless of traffic; OnMessage
// fires once per framed envelope; OnDisconnect fires on any connection
// loss, including a clean close.
type ClientCallbacks struct {
	OnIdle       func()
	OnMessage    func(raw []byte)
	OnConnect    func()
	OnDisconnect func()
}

// Client owns one reconnecting TCP connection to the server.
type Client struct {
	log     zerolog.Logger
	addr    string
	cb      ClientCallbacks

	connMu sync.RWMutex
	conn   net.Conn
}

// NewClient returns a Client dialing addr ("host:port") once Run is
// called.
func NewClient(log zerolog.Logger, addr string, cb ClientCallbacks) *Client {
	return &Client{log: log, addr: addr, cb: cb}
}

// Run drives the client's INIT -> CONNECT -> RECEIVE -> INIT loop
// until ctx is cancelled. It blocks the calling goroutine; callers
// typically invoke it via `go client.Run(ctx)`.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Debug().Err(err).Str("addr", c.addr).Msg("transport: dial failed, retrying")
			select {
			case <-time.After(dialRetryInterval):
				continue
			case <-ctx.Done():
				return
			}
		}

		c.setConn(conn)
		if c.cb.OnConnect != nil {
			c.cb.OnConnect()
		}
		c.receive(ctx, conn)
		c.setConn(nil)
		if c.cb.OnDisconnect != nil {
			c.cb.OnDisconnect()
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// Send writes raw on the current connection, if any. Per spec, a send
// failure is reported to the caller without tearing down the
// connection here — the receive loop's own read error will drive
// reconnection.
func (c *Client) Send(raw []byte) error {
	conn := c.getConn()
	if conn == nil {
		return net.ErrClosed
	}
	_, err := conn.Write(raw)
	return err
}

// Connected reports whether the client currently holds a live
// connection, mirroring the source's json_hal_is_client_connected.
func (c *Client) Connected() bool {
	return c.getConn() != nil
}

func (c *Client) receive(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	framer := framing.NewFramer()
	msgs := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		r := bufio.NewReaderSize(conn, readBufSize)
		buf := make([]byte, readBufSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				msgs <- chunk
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.cb.OnIdle != nil {
				c.cb.OnIdle()
			}
		case chunk := <-msgs:
			values, err := framer.Feed(chunk)
			for _, v := range values {
				if c.cb.OnMessage != nil {
					c.cb.OnMessage(v)
				}
			}
			if err != nil {
				c.log.Warn().Err(err).Msg("transport: client framing error, buffer dropped")
			}
		case <-readErr:
			return
		}
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

func (c *Client) getConn() net.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}
