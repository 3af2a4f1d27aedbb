package schemadoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "moduleName": {"const": "DSL"},
    "schemaVersion": {"const": "1.0"}
  },
  "type": "object",
  "properties": {
    "Result": {
      "type": "object",
      "properties": {
        "Status": {"enum": ["Success", "Failed", "Not Supported"]}
      },
      "required": ["Status"]
    }
  }
}`

func writeSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "hal_schema.json")
	require.NoError(t, os.WriteFile(p, []byte(testSchema), 0o644))
	return p
}

func TestLoadExtractsModuleIdentity(t *testing.T) {
	doc, err := Load(writeSchema(t))
	require.NoError(t, err)
	require.Equal(t, "DSL", doc.ModuleName)
	require.Equal(t, "1.0", doc.SchemaVersion)
}

func TestLoadMissingConstantsFails(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"definitions": {}}`), 0o644))

	_, err := Load(p)
	require.Error(t, err)
}

func TestValidateAcceptsAndRejects(t *testing.T) {
	doc, err := Load(writeSchema(t))
	require.NoError(t, err)

	ok, err := doc.Validate([]byte(`{"Result": {"Status": "Success"}}`))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = doc.Validate([]byte(`{"Result": {"Status": "Bogus"}}`))
	require.NoError(t, err)
	require.False(t, ok)
}
