package halrpc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/schemadoc"
	"github.com/rdkcentral/json-hal-rpc/internal/subscription"
)

const testAddr = "127.0.0.1:18799"

func TestCallRoundTrip(t *testing.T) {
	srv := NewServer(ServerConfig{Addr: testAddr, ModuleName: "DSL", ModuleVersion: "1.0", Logger: zerolog.Nop()})
	require.NoError(t, srv.RegisterHandler(envelope.ActionGetParameters, func(req envelope.Envelope, reply *envelope.Envelope) error {
		p, err := envelope.NewParam("Device.DSL.Line.1.Enable", envelope.TypeBoolean, true)
		if err != nil {
			return err
		}
		reply.Params = []envelope.Param{p}
		return nil
	}))
	go func() { _ = srv.Run() }()
	defer srv.Terminate()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := NewClient(ClientConfig{Addr: testAddr, ModuleName: "DSL", ModuleVersion: "1.0", Logger: zerolog.Nop()})
	go cl.Run(ctx)
	require.Eventually(t, cl.Connected, time.Second, 10*time.Millisecond)

	reply, err := cl.Call(ctx, envelope.ActionGetParameters, nil)
	require.NoError(t, err)
	require.Len(t, reply.Params, 1)
	require.Equal(t, "Device.DSL.Line.1.Enable", reply.Params[0].Name)
}

func TestSchemaIdentityOverridesConfigModule(t *testing.T) {
	const addr = "127.0.0.1:18802"

	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "hal_schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{
	  "definitions": {
	    "moduleName": {"const": "SCHEMA-MODULE"},
	    "schemaVersion": {"const": "9.9"}
	  },
	  "type": "object"
	}`), 0o644))
	schema, err := schemadoc.Load(schemaPath)
	require.NoError(t, err)

	srv := NewServer(ServerConfig{Addr: addr, ModuleName: "CONFIG-MODULE", ModuleVersion: "1.0", Logger: zerolog.Nop(), Schema: schema})
	var gotModule, gotVersion string
	require.NoError(t, srv.RegisterHandler(envelope.ActionGetParameters, func(req envelope.Envelope, reply *envelope.Envelope) error {
		gotModule, gotVersion = req.Module, req.Version
		return nil
	}))
	go func() { _ = srv.Run() }()
	defer srv.Terminate()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := NewClient(ClientConfig{Addr: addr, ModuleName: "CONFIG-MODULE", ModuleVersion: "1.0", Logger: zerolog.Nop(), Schema: schema})
	go cl.Run(ctx)
	require.Eventually(t, cl.Connected, time.Second, 10*time.Millisecond)

	reply, err := cl.Call(ctx, envelope.ActionGetParameters, nil)
	require.NoError(t, err)

	require.Equal(t, "SCHEMA-MODULE", gotModule)
	require.Equal(t, "9.9", gotVersion)
	require.Equal(t, "SCHEMA-MODULE", reply.Module)
	require.Equal(t, "9.9", reply.Version)
}

func TestSubscribeAndPublishAsync(t *testing.T) {
	const addr = "127.0.0.1:18800"
	srv := NewServer(ServerConfig{Addr: addr, ModuleName: "DSL", ModuleVersion: "1.0", Logger: zerolog.Nop()})
	require.NoError(t, srv.RegisterHandler(envelope.ActionSubscribeEvent, func(req envelope.Envelope, reply *envelope.Envelope) error {
		return nil
	}))
	go func() { _ = srv.Run() }()
	defer srv.Terminate()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := NewClient(ClientConfig{Addr: addr, ModuleName: "DSL", ModuleVersion: "1.0", Logger: zerolog.Nop()})
	go cl.Run(ctx)
	require.Eventually(t, cl.Connected, time.Second, 10*time.Millisecond)

	received := make(chan json.RawMessage, 1)
	require.NoError(t, cl.Subscribe(ctx, "Device.DSL.Line.1.LinkStatus", envelope.OnChange, func(raw json.RawMessage) {
		received <- raw
	}))

	require.NoError(t, srv.Publish("Device.DSL.Line.1.LinkStatus", json.RawMessage(`"up"`)))

	select {
	case got := <-received:
		require.JSONEq(t, `"up"`, string(got))
	case <-time.After(time.Second):
		t.Fatal("subscriber never received publish")
	}
}

func TestSubscribeSyncSubscriberAcks(t *testing.T) {
	const addr = "127.0.0.1:18801"
	srv := NewServer(ServerConfig{Addr: addr, ModuleName: "DSL", ModuleVersion: "1.0", Logger: zerolog.Nop()})
	require.NoError(t, srv.RegisterHandler(envelope.ActionSubscribeEvent, func(req envelope.Envelope, reply *envelope.Envelope) error {
		return nil
	}))
	go func() { _ = srv.Run() }()
	defer srv.Terminate()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := NewClient(ClientConfig{Addr: addr, ModuleName: "DSL", ModuleVersion: "1.0", Logger: zerolog.Nop()})
	go cl.Run(ctx)
	require.Eventually(t, cl.Connected, time.Second, 10*time.Millisecond)

	var invoked bool
	require.NoError(t, cl.Subscribe(ctx, "evt", envelope.OnChangeSync, func(raw json.RawMessage) {
		invoked = true
	}))

	start := time.Now()
	err := srv.Publish("evt", json.RawMessage(`1`))
	require.NoError(t, err)
	require.Less(t, time.Since(start), subscription.AckTimeout)
	require.True(t, invoked)
}
