// Package correlation implements the client-side request-correlation
// engine: an in-flight slot table keyed by the reqId the caller put on
// the request, per-call wait/notify, and timeout reaping driven by the
// transport's idle tick. Minting reqIds is left to internal/ids.
package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
)

// DefaultTicks is the number of idle ticks a pending slot survives
// before it is reaped, at the nominal 250ms tick cadence this gives
// the spec's 10s call timeout (40 x 250ms).
const DefaultTicks = 40

// slot is a single in-flight call's bookkeeping record.
type slot struct {
	reqID  string
	ticks  int
	done   chan struct{}
	once   sync.Once
	buffer json.RawMessage
	ok     bool
}

func (s *slot) complete(buf json.RawMessage, ok bool) {
	s.once.Do(func() {
		s.buffer = buf
		s.ok = ok
		close(s.done)
	})
}

// Engine owns the pending-slot table for one client connection.
type Engine struct {
	log zerolog.Logger

	mu      sync.Mutex
	pending map[string]*slot
}

// NewEngine returns an Engine with an empty pending table.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log, pending: make(map[string]*slot)}
}

// Call allocates a slot for req's reqId, submits req via send, and
// blocks until either a matching reply arrives (via Deliver) or the
// slot is reaped by Reap, or ctx is cancelled. ticks overrides
// DefaultTicks when positive, supporting the original's per-call
// timeout override.
func (e *Engine) Call(ctx context.Context, req envelope.Envelope, send func([]byte) error, ticks int) (envelope.Envelope, error) {
	if req.ReqID == "" {
		return envelope.Envelope{}, fmt.Errorf("%w: request has no reqId", herrors.ErrInvalidArgument)
	}
	if ticks <= 0 {
		ticks = DefaultTicks
	}

	s := &slot{reqID: req.ReqID, ticks: ticks, done: make(chan struct{})}

	e.mu.Lock()
	e.pending[req.ReqID] = s
	e.mu.Unlock()

	raw, err := json.Marshal(req)
	if err != nil {
		e.remove(req.ReqID)
		return envelope.Envelope{}, fmt.Errorf("%w: marshal request: %v", herrors.ErrInvalidArgument, err)
	}

	if err := send(raw); err != nil {
		e.remove(req.ReqID)
		return envelope.Envelope{}, fmt.Errorf("%w: send request: %v", herrors.ErrTransport, err)
	}

	select {
	case <-s.done:
		e.remove(req.ReqID)
		if !s.ok {
			return envelope.Envelope{}, fmt.Errorf("%w: call %s", herrors.ErrTimeout, req.ReqID)
		}
		var reply envelope.Envelope
		if err := json.Unmarshal(s.buffer, &reply); err != nil {
			return envelope.Envelope{}, fmt.Errorf("%w: decode reply: %v", herrors.ErrParse, err)
		}
		return reply, nil
	case <-ctx.Done():
		e.remove(req.ReqID)
		return envelope.Envelope{}, ctx.Err()
	}
}

// Deliver matches an inbound raw envelope against the pending table by
// reqId and, on a hit, wakes the waiting Call. Unmatched replies are
// logged and discarded, per spec.
func (e *Engine) Deliver(reqID string, raw json.RawMessage) {
	e.mu.Lock()
	s, ok := e.pending[reqID]
	if ok {
		delete(e.pending, reqID)
	}
	e.mu.Unlock()

	if !ok {
		e.log.Warn().Str("req_id", reqID).Msg("correlation: unmatched reply discarded")
		return
	}
	s.complete(raw, true)
}

// Reap decrements every pending slot's ticker by one idle tick and
// expires (removes + wakes with an error) any slot that reaches zero.
// Called once per transport idle tick.
func (e *Engine) Reap() {
	e.mu.Lock()
	var expired []*slot
	for id, s := range e.pending {
		s.ticks--
		if s.ticks <= 0 {
			expired = append(expired, s)
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()

	for _, s := range expired {
		e.log.Warn().Str("req_id", s.reqID).Msg("correlation: call expired")
		s.complete(nil, false)
	}
}

// Pending reports the number of in-flight calls, for tests/diagnostics.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) remove(reqID string) {
	e.mu.Lock()
	delete(e.pending, reqID)
	e.mu.Unlock()
}
