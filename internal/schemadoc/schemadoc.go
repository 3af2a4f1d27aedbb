// Package schemadoc wraps the HAL JSON schema file: it reads the
// module identity constants used to populate every envelope header,
// and wraps github.com/santhosh-tekuri/jsonschema/v6 behind the pure
// Validate(text) (ok, err) contract the spec treats as an external
// collaborator.
package schemadoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
)

// Doc holds the parsed schema file along with the module identity it
// declares.
type Doc struct {
	ModuleName    string
	SchemaVersion string

	compiled *jsonschema.Schema
	path     string
}

// schemaConstants is the subset of the schema document this core
// reads: definitions.moduleName.const and definitions.schemaVersion.const.
type schemaConstants struct {
	Definitions struct {
		ModuleName struct {
			Const string `json:"const"`
		} `json:"moduleName"`
		SchemaVersion struct {
			Const string `json:"const"`
		} `json:"schemaVersion"`
	} `json:"definitions"`
}

// Load reads and compiles the schema at path, and extracts the module
// identity constants spec §6 requires at init. Compilation failures
// and missing constants are both ConfigError. Callers decide what a
// failed Load means: the halrpc configs treat the Doc as optional.
func Load(path string) (*Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema %s: %v", herrors.ErrConfig, path, err)
	}

	var consts schemaConstants
	if err := json.Unmarshal(raw, &consts); err != nil {
		return nil, fmt.Errorf("%w: parse schema %s: %v", herrors.ErrConfig, path, err)
	}
	if consts.Definitions.ModuleName.Const == "" || consts.Definitions.SchemaVersion.Const == "" {
		return nil, fmt.Errorf("%w: schema %s missing definitions.moduleName.const/schemaVersion.const", herrors.ErrConfig, path)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode schema %s: %v", herrors.ErrConfig, path, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, doc); err != nil {
		return nil, fmt.Errorf("%w: load schema resource %s: %v", herrors.ErrConfig, path, err)
	}
	compiled, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: compile schema %s: %v", herrors.ErrConfig, path, err)
	}

	return &Doc{
		ModuleName:    consts.Definitions.ModuleName.Const,
		SchemaVersion: consts.Definitions.SchemaVersion.Const,
		compiled:      compiled,
		path:          path,
	}, nil
}

// Validate checks text against the compiled schema, returning ok=false
// (not an error) on a schema violation so callers can map that to a
// Not Supported reply per spec §7, and a non-nil err only when text
// itself is not well-formed JSON.
func (d *Doc) Validate(text []byte) (ok bool, err error) {
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(text))
	if err != nil {
		return false, fmt.Errorf("%w: %v", herrors.ErrParse, err)
	}
	if verr := d.compiled.Validate(v); verr != nil {
		return false, nil
	}
	return true, nil
}

// Path returns the schema file path Doc was loaded from.
func (d *Doc) Path() string {
	return d.path
}
