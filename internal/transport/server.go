package transport

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/framing"
)

// ServerCallbacks are the hooks the server's per-connection loop
// invokes. OnMessage and OnDisconnect both receive the originating
// connection's id so the dispatcher/registry can route replies and
// clean up subscriptions.
type ServerCallbacks struct {
	OnConnect    func(connID string)
	OnMessage    func(connID string, raw []byte, send func([]byte) error)
	OnDisconnect func(connID string)
}

// Server listens on one TCP address and spawns a goroutine per
// accepted connection, the idiomatic replacement for the source's
// single-threaded select-driven fan-out (spec §9 permits this
// substitution).
type Server struct {
	log zerolog.Logger
	cb  ServerCallbacks

	mu       sync.Mutex
	conns    map[string]net.Conn
	listener net.Listener
}

// NewServer returns a Server that will listen on addr once Run is
// called.
func NewServer(log zerolog.Logger, cb ServerCallbacks) *Server {
	return &Server{log: log, cb: cb, conns: make(map[string]net.Conn)}
}

// Run listens on addr and accepts connections until the listener is
// closed via Close. It blocks the calling goroutine.
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		connID := uuid.NewString()
		s.mu.Lock()
		s.conns[connID] = conn
		s.mu.Unlock()

		if s.cb.OnConnect != nil {
			s.cb.OnConnect(connID)
		}
		go s.handle(connID, conn)
	}
}

// Close stops accepting new connections. It does not forcibly close
// connections already established.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Send writes raw on the connection identified by connID, if it is
// still open.
func (s *Server) Send(connID string, raw []byte) error {
	s.mu.Lock()
	conn, ok := s.conns[connID]
	s.mu.Unlock()
	if !ok {
		return net.ErrClosed
	}
	_, err := conn.Write(raw)
	return err
}

func (s *Server) handle(connID string, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		if s.cb.OnDisconnect != nil {
			s.cb.OnDisconnect(connID)
		}
	}()

	framer := framing.NewFramer()
	buf := make([]byte, readBufSize)
	send := func(raw []byte) error { return s.Send(connID, raw) }

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			values, ferr := framer.Feed(buf[:n])
			for _, v := range values {
				if s.cb.OnMessage != nil {
					s.cb.OnMessage(connID, v, send)
				}
			}
			if ferr != nil {
				s.log.Warn().Str("conn_id", connID).Err(ferr).Msg("transport: server framing error, buffer dropped")
			}
		}
		if err != nil {
			return
		}
	}
}
