// Package halrpc is the public façade: a manager-side Client and a
// HAL-side Server built from the internal framing, transport,
// correlation, subscription, and dispatch packages.
package halrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/correlation"
	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
	"github.com/rdkcentral/json-hal-rpc/internal/ids"
	"github.com/rdkcentral/json-hal-rpc/internal/schemadoc"
	"github.com/rdkcentral/json-hal-rpc/internal/subscription"
	"github.com/rdkcentral/json-hal-rpc/internal/transport"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Addr          string
	ModuleName    string
	ModuleVersion string
	Logger        zerolog.Logger
	// Schema is optional. When set, its definitions.moduleName.const /
	// definitions.schemaVersion.const take precedence over ModuleName /
	// ModuleVersion for populating outbound envelope headers, per
	// spec §6.
	Schema *schemadoc.Doc
}

// Client is a manager-side connection to one HAL server.
type Client struct {
	cfg     ClientConfig
	module  string
	version string

	seq    *ids.Sequence
	engine *correlation.Engine
	table  *subscription.Table
	conn   *transport.Client
}

// NewClient builds a Client that dials cfg.Addr once Run is called.
func NewClient(cfg ClientConfig) *Client {
	module, version := cfg.ModuleName, cfg.ModuleVersion
	if cfg.Schema != nil {
		module, version = cfg.Schema.ModuleName, cfg.Schema.SchemaVersion
	}

	c := &Client{
		cfg:     cfg,
		module:  module,
		version: version,
		seq:     ids.NewSequence(),
		engine:  correlation.NewEngine(cfg.Logger),
		table:   subscription.NewTable(cfg.Logger),
	}
	c.conn = transport.NewClient(cfg.Logger, cfg.Addr, transport.ClientCallbacks{
		OnIdle:    c.engine.Reap,
		OnMessage: c.onMessage,
	})
	return c
}

// Run drives the client's connect/receive loop until ctx is
// cancelled. It blocks the calling goroutine.
func (c *Client) Run(ctx context.Context) {
	c.conn.Run(ctx)
}

// Connected reports whether the client currently holds a live
// connection.
func (c *Client) Connected() bool {
	return c.conn.Connected()
}

// Call sends a request for action with params and blocks for a reply
// or the default 10s timeout (40 x 250ms ticks), per spec §4.4.
func (c *Client) Call(ctx context.Context, action envelope.Action, params []envelope.Param) (envelope.Envelope, error) {
	return c.call(ctx, action, params, 0)
}

// CallWithTimeout behaves like Call but overrides the number of idle
// ticks the pending slot survives, mirroring the source's
// json_hal_client_send_and_get_reply_with_timeout entry point.
func (c *Client) CallWithTimeout(ctx context.Context, action envelope.Action, params []envelope.Param, timeout time.Duration) (envelope.Envelope, error) {
	ticks := int(timeout / (250 * time.Millisecond))
	if ticks < 1 && timeout > 0 {
		ticks = 1
	}
	return c.call(ctx, action, params, ticks)
}

func (c *Client) call(ctx context.Context, action envelope.Action, params []envelope.Param, ticks int) (envelope.Envelope, error) {
	reqID := c.seq.NextHex()
	req := envelope.NewRequest(c.module, c.version, action, reqID, params)
	return c.engine.Call(ctx, req, c.conn.Send, ticks)
}

// Subscribe registers a local callback for event and sends the
// subscribeEvent request that tells the server to start publishing
// it, per spec §4.5.
func (c *Client) Subscribe(ctx context.Context, event string, mode envelope.NotificationMode, cb subscription.Callback) error {
	c.table.Register(event, mode, cb)

	reqID := c.seq.NextHex()
	req := envelope.NewSubscribeRequest(c.module, c.version, reqID, event, mode)
	reply, err := c.engine.Call(ctx, req, c.conn.Send, 0)
	if err != nil {
		return err
	}
	status, ok := reply.ParamStatus()
	if !ok || status != envelope.StatusSuccess {
		return fmt.Errorf("%w: subscribeEvent %q rejected with status %q", herrors.ErrNotFound, event, status)
	}
	return nil
}

func (c *Client) onMessage(raw []byte) {
	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("halrpc: client discarding malformed envelope")
		return
	}

	if env.Action == envelope.ActionPublishEvent {
		if ack, handled := c.table.Dispatch(c.module, c.version, env); handled && ack != nil {
			ackRaw, err := json.Marshal(*ack)
			if err == nil {
				if err := c.conn.Send(ackRaw); err != nil {
					c.cfg.Logger.Warn().Err(err).Msg("halrpc: client failed to send publish ack")
				}
			}
		}
		return
	}

	c.engine.Deliver(env.ReqID, raw)
}
