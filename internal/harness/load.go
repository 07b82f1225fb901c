package harness

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSrc string

// SchemaError reports a scenario that does not match the schema.
type SchemaError struct {
	File    string
	Details string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema validation failed:\n%s", e.File, e.Details)
}

// LoadScenario reads a .yaml, .yml or .cue scenario file, validates it and
// decodes it.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data, path)
}

// ParseScenario validates and decodes scenario source. The extension of
// filename selects the format; anything but .cue is YAML.
func ParseScenario(data []byte, filename string) (*Scenario, error) {
	value, err := checkSchema(data, filename)
	if err != nil {
		return nil, err
	}

	var s Scenario
	if isCUE(filename) {
		raw, err := value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", filename, err)
		}
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&s); err != nil {
			return nil, fmt.Errorf("parse YAML %s: %w", filename, err)
		}
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filename, err)
	}
	return &s, nil
}

// ValidateScenario checks scenario source against the schema without
// decoding it.
func ValidateScenario(data []byte, filename string) error {
	_, err := checkSchema(data, filename)
	return err
}

// checkSchema unifies the source with #Scenario and returns the unified
// value. For CUE sources a top-level "scenario" field, when present, is the
// scenario.
func checkSchema(data []byte, filename string) (cue.Value, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile scenario schema: %w", err)
	}

	var value cue.Value
	if isCUE(filename) {
		value = ctx.CompileBytes(data, cue.Filename(filename))
		if nested := value.LookupPath(cue.ParsePath("scenario")); nested.Exists() {
			value = nested
		}
	} else {
		file, err := cueyaml.Extract(filename, data)
		if err != nil {
			return cue.Value{}, fmt.Errorf("parse YAML %s: %w", filename, err)
		}
		value = ctx.BuildFile(file)
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, &SchemaError{File: filename, Details: cueerrors.Details(err, nil)}
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, &SchemaError{File: filename, Details: cueerrors.Details(err, nil)}
	}
	return unified, nil
}

func isCUE(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".cue")
}
