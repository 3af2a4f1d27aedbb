package halrpc

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/dispatch"
	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/ids"
	"github.com/rdkcentral/json-hal-rpc/internal/schemadoc"
	"github.com/rdkcentral/json-hal-rpc/internal/subscription"
	"github.com/rdkcentral/json-hal-rpc/internal/transport"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr          string
	ModuleName    string
	ModuleVersion string
	Logger        zerolog.Logger
	// Schema is optional; when set, handler replies are validated
	// against it before being sent (spec §4.6's opt-in validation).
	Schema *schemadoc.Doc
}

// Server is a HAL-side endpoint serving one or more manager
// connections on a single listening socket.
type Server struct {
	cfg     ServerConfig
	module  string
	version string
	subs    *subscription.Registry
	disp    *dispatch.Dispatcher
	ln      *transport.Server
}

// NewServer builds a Server that will listen on cfg.Addr once Run is
// called. When cfg.Schema is set, its definitions.moduleName.const /
// definitions.schemaVersion.const take precedence over
// cfg.ModuleName / cfg.ModuleVersion for populating outbound envelope
// headers, per spec §6.
func NewServer(cfg ServerConfig) *Server {
	module, version := cfg.ModuleName, cfg.ModuleVersion
	if cfg.Schema != nil {
		module, version = cfg.Schema.ModuleName, cfg.Schema.SchemaVersion
	}

	seq := ids.NewSequence()
	subs := subscription.NewRegistry(cfg.Logger, seq)
	disp := dispatch.New(cfg.Logger, module, version, cfg.Schema, subs)

	s := &Server{cfg: cfg, module: module, version: version, subs: subs, disp: disp}
	s.ln = transport.NewServer(cfg.Logger, transport.ServerCallbacks{
		OnMessage:    s.onMessage,
		OnDisconnect: subs.RemoveConn,
	})
	return s
}

// Run listens and serves connections until the listener is closed via
// Terminate. It blocks the calling goroutine.
func (s *Server) Run() error {
	return s.ln.Run(s.cfg.Addr)
}

// Terminate stops accepting new connections.
func (s *Server) Terminate() error {
	return s.ln.Close()
}

// RegisterHandler binds h to action; a duplicate registration returns
// herrors.ErrAlreadyRegistered.
func (s *Server) RegisterHandler(action envelope.Action, h dispatch.Handler) error {
	return s.disp.Register(action, h)
}

// Publish sends event's value to every subscriber, blocking for
// synchronous subscribers per spec §4.5.
func (s *Server) Publish(event string, value json.RawMessage) error {
	return s.subs.Publish(s.module, s.version, event, value)
}

func (s *Server) onMessage(connID string, raw []byte, send func([]byte) error) {
	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.cfg.Logger.Warn().Str("conn_id", connID).Err(err).Msg("halrpc: server discarding malformed envelope")
		return
	}
	s.disp.Dispatch(connID, send, env)
}
