// Command halserver is a sample HAL-side endpoint: it loads its
// module identity and schema from a config file, registers a handful
// of demo parameter handlers, and serves manager connections until
// signalled to stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdkcentral/json-hal-rpc/halrpc"
	"github.com/rdkcentral/json-hal-rpc/internal/config"
	"github.com/rdkcentral/json-hal-rpc/internal/dispatch"
	"github.com/rdkcentral/json-hal-rpc/internal/envelope"
	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
	"github.com/rdkcentral/json-hal-rpc/internal/schemadoc"
)

func main() {
	configFile := flag.String("config", "config/hal.json", "path to the JSON process config")
	handlerMetaFile := flag.String("handler-meta", "config/handlers.yaml", "path to the optional YAML handler metadata file")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("halserver: failed to load config")
	}

	aux, err := config.LoadAux(*handlerMetaFile)
	if err != nil {
		log.Warn().Err(err).Msg("halserver: handler metadata not loaded")
		aux = &config.AuxFile{}
	}
	meta := aux.ByAction()

	var schema *schemadoc.Doc
	if doc, err := schemadoc.Load(settings.SchemaPath); err != nil {
		log.Warn().Err(err).Msg("halserver: schema not loaded, opt-in validation disabled")
	} else {
		schema = doc
	}

	srv := halrpc.NewServer(halrpc.ServerConfig{
		Addr:          addrFor(settings.Port),
		ModuleName:    settings.ModuleName,
		ModuleVersion: settings.ModuleVersion,
		Logger:        log,
		Schema:        schema,
	})

	if err := srv.RegisterHandler(envelope.ActionGetParameters, withHandlerMeta(log, meta, envelope.ActionGetParameters, func(req envelope.Envelope, reply *envelope.Envelope) error {
		p, err := envelope.NewParam("Device.DSL.Line.1.Enable", envelope.TypeBoolean, true)
		if err != nil {
			return err
		}
		reply.Params = []envelope.Param{p}
		return nil
	})); err != nil {
		log.Fatal().Err(err).Msg("halserver: failed to register getParameters handler")
	}

	if err := srv.RegisterHandler(envelope.ActionSubscribeEvent, withHandlerMeta(log, meta, envelope.ActionSubscribeEvent, func(req envelope.Envelope, reply *envelope.Envelope) error {
		return nil
	})); err != nil {
		log.Fatal().Err(err).Msg("halserver: failed to register subscribeEvent handler")
	}

	go func() {
		if err := srv.Run(); err != nil {
			log.Error().Err(err).Msg("halserver: listener stopped")
		}
	}()

	log.Info().Str("module", settings.ModuleName).Int("port", settings.Port).Msg("halserver: listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("halserver: shutting down")
	if err := srv.Terminate(); err != nil {
		log.Warn().Err(err).Msg("halserver: error closing listener")
	}
}

func addrFor(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}

// withHandlerMeta logs h's operator-supplied description, if any, and
// enforces its per-action Timeout by racing h against a timer, mapping
// an overrun to ErrTimeout rather than letting a slow handler stall
// the dispatcher indefinitely.
func withHandlerMeta(log zerolog.Logger, meta map[string]config.HandlerMeta, action envelope.Action, h dispatch.Handler) dispatch.Handler {
	m, ok := meta[string(action)]
	if !ok {
		return h
	}
	if m.Description != "" {
		log.Info().Str("action", string(action)).Str("description", m.Description).Msg("halserver: handler registered")
	}
	if m.Timeout <= 0 {
		return h
	}

	timeout := m.Timeout
	return func(req envelope.Envelope, reply *envelope.Envelope) error {
		done := make(chan error, 1)
		go func() { done <- h(req, reply) }()
		select {
		case err := <-done:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("%w: handler for %q exceeded %s", herrors.ErrTimeout, action, timeout)
		}
	}
}
