// Package dispatch implements the server-side action dispatcher: it
// routes an inbound envelope to a registered handler by action,
// building the reply skeleton, invoking the handler, and mapping the
// outcome onto a reply envelope. It also routes inbound result
// envelopes with no registered handler to the subscription registry's
// ack path, and successful subscribeEvent calls into the registry.
package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
	"github.com/rdkcentral/json-hal-rpc/internal/schemadoc"
	"github.com/rdkcentral/json-hal-rpc/internal/subscription"
)

// Handler processes one request envelope and fills in the reply
// skeleton it is handed. Returning a non-nil error (of any kind) maps
// the reply's Result.Status to Failed; a reply that fails opt-in schema
// validation is replaced by a Not Supported reply instead.
type Handler func(req envelope.Envelope, reply *envelope.Envelope) error

// Dispatcher owns the action -> Handler table for one server endpoint.
type Dispatcher struct {
	log    zerolog.Logger
	module string
	vers   string
	schema *schemadoc.Doc // optional; nil disables opt-in validation
	subs   *subscription.Registry

	mu       sync.RWMutex
	handlers map[envelope.Action]Handler
}

// New returns an empty Dispatcher for the given module identity. schema
// may be nil to skip opt-in reply validation.
func New(log zerolog.Logger, module, version string, schema *schemadoc.Doc, subs *subscription.Registry) *Dispatcher {
	return &Dispatcher{
		log:      log,
		module:   module,
		vers:     version,
		schema:   schema,
		subs:     subs,
		handlers: make(map[envelope.Action]Handler),
	}
}

// Register binds a handler to action. A second Register for the same
// action returns ErrAlreadyRegistered rather than silently replacing
// the first, per spec §4.6.
func (d *Dispatcher) Register(action envelope.Action, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[action]; exists {
		return fmt.Errorf("%w: action %q", herrors.ErrAlreadyRegistered, action)
	}
	d.handlers[action] = h
	return nil
}

// Dispatch routes one inbound envelope for the connection identified
// by connID, using send to write any reply. Missing reqId or action
// are dropped with a logged warning and no reply, per spec.
func (d *Dispatcher) Dispatch(connID string, send func([]byte) error, req envelope.Envelope) {
	if req.ReqID == "" || req.Action == "" {
		d.log.Warn().Str("conn_id", connID).Msg("dispatch: dropping envelope missing reqId/action")
		return
	}

	d.mu.RLock()
	h, ok := d.handlers[req.Action]
	d.mu.RUnlock()

	if !ok && req.Action == envelope.ActionResult {
		d.handleResult(req)
		return
	}

	if !ok {
		reply := envelope.NewResultReply(d.module, d.vers, req.ReqID, envelope.StatusNotSupported)
		d.reply(connID, send, reply)
		return
	}

	reply := envelope.NewReplySkeleton(d.module, d.vers, req.Action, req.ReqID)
	if err := h(req, &reply); err != nil {
		d.log.Warn().Str("conn_id", connID).Str("action", string(req.Action)).Err(err).Msg("dispatch: handler error")
		reply = envelope.NewResultReply(d.module, d.vers, req.ReqID, envelope.StatusFailed)
		d.reply(connID, send, reply)
		return
	}

	if d.schema != nil {
		raw, err := json.Marshal(reply)
		if err == nil {
			if ok, verr := d.schema.Validate(raw); verr == nil && !ok {
				d.log.Warn().Str("conn_id", connID).Str("action", string(req.Action)).Err(herrors.ErrSchemaViolation).Msg("dispatch: reply failed schema validation")
				reply = envelope.NewResultReply(d.module, d.vers, req.ReqID, envelope.StatusNotSupported)
			}
		}
	}

	if req.Action == envelope.ActionSubscribeEvent && d.subs != nil {
		d.registerSubscription(connID, send, req)
	}

	d.reply(connID, send, reply)
}

func (d *Dispatcher) handleResult(req envelope.Envelope) {
	if d.subs == nil {
		return
	}
	status, ok := req.ParamStatus()
	if !ok {
		return
	}
	d.subs.Ack(req.ReqID, status)
}

func (d *Dispatcher) registerSubscription(connID string, send func([]byte) error, req envelope.Envelope) {
	if len(req.Params) == 0 {
		return
	}
	p := req.Params[0]
	mode, ok := envelope.ParseNotificationMode(p.NotificationType)
	if !ok {
		d.log.Warn().Str("conn_id", connID).Str("notification_type", p.NotificationType).Msg("dispatch: unknown notification type, defaulting to onChange")
	}
	d.subs.Subscribe(connID, p.Name, mode, send)
}

func (d *Dispatcher) reply(connID string, send func([]byte) error, reply envelope.Envelope) {
	raw, err := json.Marshal(reply)
	if err != nil {
		d.log.Error().Str("conn_id", connID).Err(err).Msg("dispatch: marshal reply failed")
		return
	}
	if err := send(raw); err != nil {
		d.log.Warn().Str("conn_id", connID).Err(err).Msg("dispatch: send reply failed")
	}
}
