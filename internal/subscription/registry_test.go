package subscription

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
	"github.com/rdkcentral/json-hal-rpc/internal/ids"
)

func TestPublishFanOutAsync(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), ids.NewSequence())

	var mu sync.Mutex
	var receivedA, receivedB []byte

	r.Subscribe("connA", "Device.DSL.Line.1.LinkStatus", envelope.OnChange, func(b []byte) error {
		mu.Lock()
		receivedA = b
		mu.Unlock()
		return nil
	})
	r.Subscribe("connB", "Device.DSL.Line.1.LinkStatus", envelope.OnChange, func(b []byte) error {
		mu.Lock()
		receivedB = b
		mu.Unlock()
		return nil
	})

	err := r.Publish("DSL", "1.0", "Device.DSL.Line.1.LinkStatus", json.RawMessage(`"up"`))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, string(receivedA), "Device.DSL.Line.1.LinkStatus")
	require.Contains(t, string(receivedB), "Device.DSL.Line.1.LinkStatus")
}

func TestPublishSyncAckedQuicklyReturnsOK(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), ids.NewSequence())

	r.Subscribe("connA", "evt", envelope.OnChangeSyncTimeout, func(b []byte) error {
		var env envelope.Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		go func() {
			time.Sleep(5 * time.Millisecond)
			r.Ack(env.ReqID, envelope.StatusSuccess)
		}()
		return nil
	})

	start := time.Now()
	err := r.Publish("DSL", "1.0", "evt", json.RawMessage(`1`))
	require.NoError(t, err)
	require.Less(t, time.Since(start), AckTimeout)
}

func TestPublishSyncTimeoutNeverAcked(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), ids.NewSequence())
	r.Subscribe("connA", "evt", envelope.OnChangeSyncTimeout, func(b []byte) error { return nil })

	orig := AckTimeout
	// Speed the test up without changing production behaviour: shrink
	// the package-level constant isn't possible (it's a const), so
	// exercise the real constant but bound the test's patience instead.
	_ = orig

	done := make(chan error, 1)
	go func() { done <- r.Publish("DSL", "1.0", "evt", json.RawMessage(`1`)) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, herrors.ErrTimeout)
	case <-time.After(AckTimeout + 2*time.Second):
		t.Fatal("publish did not time out within the ack ceiling")
	}
}

func TestRemoveConnDropsItsSubscriptions(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), ids.NewSequence())
	r.Subscribe("connA", "evt", envelope.OnChange, func(b []byte) error { return nil })
	r.Subscribe("connB", "evt", envelope.OnChange, func(b []byte) error { return nil })
	require.Equal(t, 2, r.Count())

	r.RemoveConn("connA")
	require.Equal(t, 1, r.Count())
}
