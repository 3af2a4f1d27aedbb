// Package config loads the process-wide settings both endpoints need
// at startup: the HAL schema file path, the loopback port, the module
// identity, and the default call timeout. The primary source is a
// JSON file layered with environment-variable overrides via viper;
// a secondary YAML file, loaded independently, supplies optional
// per-handler operator metadata that has no wire representation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"os"

	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
)

// Settings is the process configuration spec §6 describes:
// {hal_schema_path, server_port}, plus the module identity used to
// populate envelope headers and a request timeout. RequestTimeout is
// loaded and defaulted only; the correlation engine does not read it
// and keeps its own DefaultTicks.
type Settings struct {
	SchemaPath     string        `mapstructure:"hal_schema_path"`
	Port           int           `mapstructure:"server_port"`
	ModuleName     string        `mapstructure:"module_name"`
	ModuleVersion  string        `mapstructure:"module_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

const (
	defaultPort           = 9990
	defaultRequestTimeout = 10 * time.Second
)

// Load reads Settings from the JSON file at path, with HALRPC_-prefixed
// environment variables named after the config keys overriding any key
// the file or the defaults set (HALRPC_HAL_SCHEMA_PATH,
// HALRPC_SERVER_PORT, HALRPC_MODULE_NAME, HALRPC_MODULE_VERSION,
// HALRPC_REQUEST_TIMEOUT).
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("HALRPC")
	v.AutomaticEnv()

	v.SetDefault("server_port", defaultPort)
	v.SetDefault("request_timeout", defaultRequestTimeout)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read config %s: %v", herrors.ErrConfig, path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: decode config %s: %v", herrors.ErrConfig, path, err)
	}

	if s.SchemaPath == "" {
		return nil, fmt.Errorf("%w: hal_schema_path is required", herrors.ErrConfig)
	}
	if s.ModuleName == "" {
		return nil, fmt.Errorf("%w: module_name is required", herrors.ErrConfig)
	}
	return &s, nil
}

// HandlerMeta is one operator-supplied entry in the auxiliary handler
// metadata file: documentation and an optional per-action timeout
// override, neither of which has a wire representation.
type HandlerMeta struct {
	Action      string        `yaml:"action"`
	Description string        `yaml:"description"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// AuxFile is the auxiliary YAML document: a flat list of handler
// metadata entries keyed by action name once loaded.
type AuxFile struct {
	Handlers []HandlerMeta `yaml:"handlers"`
}

// LoadAux reads the optional auxiliary handler-metadata file at path.
// Absence of the file is not an error: operators are not required to
// annotate handlers, so callers get an empty AuxFile.
func LoadAux(path string) (*AuxFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &AuxFile{}, nil
		}
		return nil, fmt.Errorf("%w: read aux file %s: %v", herrors.ErrConfig, path, err)
	}

	var aux AuxFile
	if err := yaml.Unmarshal(data, &aux); err != nil {
		return nil, fmt.Errorf("%w: parse aux file %s: %v", herrors.ErrConfig, path, err)
	}
	return &aux, nil
}

// ByAction indexes an AuxFile's entries by action name for lookup when
// handlers are registered (cmd/halserver).
func (a *AuxFile) ByAction() map[string]HandlerMeta {
	m := make(map[string]HandlerMeta, len(a.Handlers))
	for _, h := range a.Handlers {
		m[h.Action] = h
	}
	return m
}
