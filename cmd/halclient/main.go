// Command halclient is a sample manager-side process: it connects to
// a HAL server, issues a getParameters call, subscribes to a demo
// event, and logs whatever it receives until signalled to stop.
// Grounded on the original samples/json_hal_client_test.c and
// json_hal_client_event_test.c, reworked into one entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/halrpc"
	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/schemadoc"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9990", "HAL server address")
	moduleName := flag.String("module", "DSL", "module name to present in the envelope header (overridden by -schema, if set)")
	moduleVersion := flag.String("version", "1.0", "module version to present in the envelope header (overridden by -schema, if set)")
	schemaPath := flag.String("schema", "", "optional path to the HAL JSON schema file; when set, its module identity wins over -module/-version")
	event := flag.String("event", "Device.DSL.Line.1.LinkStatus", "event name to subscribe to")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	var schema *schemadoc.Doc
	if *schemaPath != "" {
		doc, err := schemadoc.Load(*schemaPath)
		if err != nil {
			log.Warn().Err(err).Msg("halclient: schema not loaded, using -module/-version as-is")
		} else {
			schema = doc
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl := halrpc.NewClient(halrpc.ClientConfig{
		Addr:          *addr,
		ModuleName:    *moduleName,
		ModuleVersion: *moduleVersion,
		Logger:        log,
		Schema:        schema,
	})
	go cl.Run(ctx)

	if err := cl.Subscribe(ctx, *event, envelope.OnChange, func(raw json.RawMessage) {
		log.Info().Str("event", *event).RawJSON("value", raw).Msg("halclient: event received")
	}); err != nil {
		log.Warn().Err(err).Msg("halclient: subscribe failed")
	}

	reply, err := cl.Call(ctx, envelope.ActionGetParameters, nil)
	if err != nil {
		log.Warn().Err(err).Msg("halclient: getParameters call failed")
	} else {
		for _, p := range reply.Params {
			fmt.Printf("%s = %s\n", p.Name, string(p.Value))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("halclient: shutting down")
}
