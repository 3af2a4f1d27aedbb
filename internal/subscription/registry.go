// Package subscription implements the server-side subscription
// registry and its client-side mirror.
//
// The registry tracks per-(connection, event) subscriptions and
// publishes events to matching subscribers; in the two synchronous
// notification modes it blocks the publisher until every subscriber
// acks or a timeout elapses. The mirror lets a client invoke the
// user's callback for every matching inbound publishEvent and, for
// synchronous publishes, echo an ack back.
package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
	"github.com/rdkcentral/json-hal-rpc/internal/ids"
)

// AckTimeout is the ceiling spec §4.5 gives onChangeSyncTimeout.
const AckTimeout = 10 * time.Second

// publishState is the subscription's last-publish state machine:
// none -> waiting -> (success|error) -> waiting -> ...
type publishState int

const (
	stateNone publishState = iota
	stateWaiting
	stateSuccess
	stateError
)

// pubTarget names one subscriber a Publish call is waiting to hear
// back from.
type pubTarget struct {
	rec   *record
	reqID string
}

// record is one (connection, event) subscription.
type record struct {
	connID string
	event  string
	mode   envelope.NotificationMode
	send   func([]byte) error

	state publishState
	reqID string
}

// Registry is the server-side subscription table.
type Registry struct {
	log zerolog.Logger
	seq *ids.Sequence

	mu   sync.Mutex
	cond *sync.Cond
	recs []*record
}

// NewRegistry returns an empty Registry. seq is the server's sequence
// counter, shared so every minted event reqId is unique within the
// server's lifetime.
func NewRegistry(log zerolog.Logger, seq *ids.Sequence) *Registry {
	r := &Registry{log: log, seq: seq}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Subscribe registers a subscription for (connID, event) with the
// given notification mode and per-connection sender. Duplicate
// subscriptions for the same (connID, event) are appended as separate
// records: the server may store multiple even though a client-side
// resubscribe is a no-op from the caller's perspective, per spec §8.
func (r *Registry) Subscribe(connID, event string, mode envelope.NotificationMode, send func([]byte) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, &record{connID: connID, event: event, mode: mode, send: send, state: stateNone})
}

// RemoveConn deletes every subscription owned by connID, called on
// connection close.
func (r *Registry) RemoveConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.recs[:0]
	for _, rec := range r.recs {
		if rec.connID != connID {
			kept = append(kept, rec)
		}
	}
	r.recs = kept
	r.cond.Broadcast()
}

// Count returns the number of live subscription records, for tests.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// Publish sends event's value to every subscriber of event, in
// registration order, minting a fresh reqId per subscriber. For
// synchronous subscribers it then blocks until every one of them acks
// or (in the timeout mode) the 10s ceiling elapses.
func (r *Registry) Publish(module, version, event string, value json.RawMessage) error {
	r.mu.Lock()
	var (
		waitFor []pubTarget
		maxWait time.Duration
		hasCap  bool
	)
	// Snapshot the matching records and the bytes to send for each
	// while still holding the lock: r.recs is never read again without
	// the lock below, so a concurrent RemoveConn (which compacts the
	// slice in place) cannot corrupt an in-progress range over it.
	type sendItem struct {
		rec *record
		raw []byte
	}
	var toSend []sendItem
	for _, rec := range r.recs {
		if rec.event != event {
			continue
		}
		reqID := r.seq.NextDecimal()
		env, err := envelope.NewEvent(module, version, reqID, event, value)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		if rec.mode != envelope.OnChange {
			rec.state = stateWaiting
			rec.reqID = reqID
			waitFor = append(waitFor, pubTarget{rec: rec, reqID: reqID})
			if rec.mode == envelope.OnChangeSyncTimeout {
				hasCap = true
				if AckTimeout > maxWait {
					maxWait = AckTimeout
				}
			}
		}
		raw, err := json.Marshal(env)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		toSend = append(toSend, sendItem{rec: rec, raw: raw})
	}
	r.mu.Unlock()

	for _, item := range toSend {
		if err := item.rec.send(item.raw); err != nil {
			r.log.Warn().Str("conn_id", item.rec.connID).Str("event", event).Err(err).Msg("subscription: publish send failed")
		}
	}

	if len(waitFor) == 0 {
		return nil
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if hasCap {
		ctx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		r.mu.Lock()
		for !allResolved(waitFor) {
			if ctx.Err() != nil {
				break
			}
			r.cond.Wait()
		}
		r.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Wake the waiting goroutine so it observes ctx.Err() and
		// returns instead of blocking forever on a cond that nobody
		// else broadcasts. Holding the lock keeps the wake-up from
		// landing between its ctx check and its Wait.
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
		<-done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range waitFor {
		if t.rec.state == stateError {
			return fmt.Errorf("%w: subscriber on %s returned error ack", herrors.ErrTimeout, t.rec.connID)
		}
		if t.rec.state == stateWaiting {
			return fmt.Errorf("%w: publish to %s on %q", herrors.ErrTimeout, t.rec.connID, event)
		}
	}
	return nil
}

func allResolved(targets []pubTarget) bool {
	for _, t := range targets {
		if t.rec.state == stateWaiting {
			return false
		}
	}
	return true
}

// Ack applies an inbound result envelope's status to whichever
// subscription is waiting on reqID, if any. Non-matching result
// envelopes are ignored, per spec §4.5.
func (r *Registry) Ack(reqID string, status envelope.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.state == stateWaiting && rec.reqID == reqID {
			if status == envelope.StatusSuccess {
				rec.state = stateSuccess
			} else {
				rec.state = stateError
			}
			r.cond.Broadcast()
			return
		}
	}
}
