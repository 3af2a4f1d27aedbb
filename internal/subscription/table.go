package subscription

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
)

// Callback receives a decoded event's raw value and length, matching
// the source's (event_msg, event_msg_length) signature.
type Callback func(raw json.RawMessage)

type callbackEntry struct {
	mode     envelope.NotificationMode
	callback Callback
}

// Table is the client-side subscription callback table: one entry per
// subscribed event, invoked on every matching publishEvent. It has no
// automatic unsubscribe.
type Table struct {
	log zerolog.Logger

	mu      sync.RWMutex
	entries map[string]callbackEntry
}

// NewTable returns an empty client-side subscription table.
func NewTable(log zerolog.Logger) *Table {
	return &Table{log: log, entries: make(map[string]callbackEntry)}
}

// Register records cb for event with the given mode. A second
// Register for the same event replaces the prior entry: it is a no-op
// from the caller's perspective — the same guarantee a single
// subscription stream provides, per spec §8.
func (t *Table) Register(event string, mode envelope.NotificationMode, cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[event] = callbackEntry{mode: mode, callback: cb}
}

// Dispatch handles an inbound publishEvent envelope: it looks up the
// subscribed event by the envelope's sole param name, invokes the
// callback, and — when the envelope carries a non-empty reqId
// (signalling the publisher is waiting synchronously) — returns a
// result envelope the caller should send back with Status Success,
// after the callback has returned.
func (t *Table) Dispatch(module, version string, env envelope.Envelope) (ack *envelope.Envelope, handled bool) {
	if len(env.Params) == 0 {
		return nil, false
	}
	name := env.Params[0].Name

	t.mu.RLock()
	entry, ok := t.entries[name]
	t.mu.RUnlock()
	if !ok {
		t.log.Debug().Str("event", name).Msg("subscription: no local subscriber for event")
		return nil, false
	}

	if entry.callback != nil {
		entry.callback(env.Params[0].Value)
	}

	if env.ReqID != "" {
		reply := envelope.NewResultReply(module, version, env.ReqID, envelope.StatusSuccess)
		return &reply, true
	}
	return nil, true
}
