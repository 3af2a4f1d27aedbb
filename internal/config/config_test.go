package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadAppliesDefaultsAndRequiredFields(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "hal.json", `{"hal_schema_path": "schema.json", "module_name": "DSL"}`)

	s, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "schema.json", s.SchemaPath)
	require.Equal(t, "DSL", s.ModuleName)
	require.Equal(t, defaultPort, s.Port)
	require.Equal(t, defaultRequestTimeout, s.RequestTimeout)
}

func TestLoadRequiresSchemaPath(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "hal.json", `{"module_name": "DSL"}`)

	_, err := Load(p)
	require.Error(t, err)
}

func TestLoadEnvOverridesPort(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "hal.json", `{"hal_schema_path": "schema.json", "module_name": "DSL", "server_port": 9990}`)

	t.Setenv("HALRPC_SERVER_PORT", "8080")
	s, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 8080, s.Port)
}

func TestLoadAuxMissingFileReturnsEmpty(t *testing.T) {
	aux, err := LoadAux(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Empty(t, aux.Handlers)
}

func TestLoadAuxParsesHandlerMetadata(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "aux.yaml", "handlers:\n  - action: getParameters\n    description: reads device params\n")

	aux, err := LoadAux(p)
	require.NoError(t, err)
	require.Len(t, aux.Handlers, 1)
	require.Equal(t, "getParameters", aux.ByAction()["getParameters"].Action)
}
