package stage

import (
	"fmt"
	"strconv"

	"github.com/adapipe/engine/internal/perr"
	"github.com/xeipuuv/gojsonschema"
)

// Params is a thin accessor over Configuration.Parameters giving each stage
// its own typed FromParameters-style extraction (spec §4.2): missing
// required keys fail with MissingParameter, bad values with InvalidParameter.
type Params struct {
	raw map[string]string
}

// NewParams wraps a configuration's raw parameter map.
func NewParams(raw map[string]string) Params {
	return Params{raw: raw}
}

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p.raw[key]
	if !ok || v == "" {
		return "", perr.MissingParameter(key)
	}
	return v, nil
}

// StringOr returns an optional string parameter, falling back to def.
func (p Params) StringOr(key, def string) string {
	if v, ok := p.raw[key]; ok && v != "" {
		return v
	}
	return def
}

// Int returns a required integer parameter.
func (p Params) Int(key string) (int, error) {
	v, ok := p.raw[key]
	if !ok || v == "" {
		return 0, perr.MissingParameter(key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, perr.InvalidParameter(key, fmt.Sprintf("not an integer: %v", err))
	}
	return n, nil
}

// IntOr returns an optional integer parameter, falling back to def.
func (p Params) IntOr(key string, def int) (int, error) {
	v, ok := p.raw[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, perr.InvalidParameter(key, fmt.Sprintf("not an integer: %v", err))
	}
	return n, nil
}

// Bool returns an optional boolean parameter, defaulting to false.
func (p Params) Bool(key string) (bool, error) {
	v, ok := p.raw[key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, perr.InvalidParameter(key, fmt.Sprintf("not a boolean: %v", err))
	}
	return b, nil
}

// OneOf validates that a required string parameter's value is one of allowed,
// returning InvalidParameter otherwise. Used by stages with a closed
// algorithm/variant set (compression algorithm, encryption algorithm, base64
// variant).
func (p Params) OneOf(key string, allowed ...string) (string, error) {
	v, err := p.String(key)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", perr.InvalidParameter(key, fmt.Sprintf("must be one of %v, got %q", allowed, v))
}

// ValidateJSONSchema validates a stage's raw parameters, JSON-encoded, against
// a JSON schema document. Stages with parameter shapes too irregular for the
// String/Int/Bool accessors above (e.g. a custom transform stage accepting
// arbitrary nested config) use this instead.
func ValidateJSONSchema(schemaJSON string, paramsJSON []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(paramsJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return perr.InvalidConfiguration("schema validation error: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return perr.InvalidConfiguration("parameter schema violation: %v", msgs)
	}
	return nil
}
