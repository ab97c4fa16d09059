// Package validate enforces a tool's parameter contract before its
// handler runs: required checks, type coercion, constraints, and
// unknown-property policy. Secret values never appear in errors.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/orahub/oracle-mcp/internal/oraerr"
	"github.com/orahub/oracle-mcp/internal/secret"
)

// Schema is the subset of JSON Schema the tool catalog uses.
type Schema struct {
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties"`
	Required   []string             `json:"required"`
}

// Property describes one argument.
type Property struct {
	Type      string    `json:"type"`
	Enum      []any     `json:"enum"`
	Minimum   *float64  `json:"minimum"`
	Maximum   *float64  `json:"maximum"`
	MinLength *int      `json:"minLength"`
	MaxLength *int      `json:"maxLength"`
	Pattern   string    `json:"pattern"`
	Items     *Property `json:"items"`
	Default   any       `json:"default"`
	// Format "password" marks a secret; its value is redacted from
	// every error message.
	Format string `json:"format"`
}

func (p *Property) secret() bool {
	return p != nil && p.Format == "password"
}

// Parse decodes a raw input schema. The registry has already verified
// it is a JSON object schema.
func Parse(raw json.RawMessage) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, oraerr.Validation(oraerr.CodeInvalidSchema, "input schema does not parse")
	}
	return &s, nil
}

// Arguments validates and coerces args against the schema. Under the
// lenient policy unknown properties are dropped with a warning;
// strict rejects them.
func Arguments(schema *Schema, args map[string]any, lenient bool) (map[string]any, []string, error) {
	if args == nil {
		args = map[string]any{}
	}

	out := make(map[string]any, len(args))
	var warnings []string

	for name := range args {
		if _, known := schema.Properties[name]; !known {
			if lenient {
				warnings = append(warnings, fmt.Sprintf("unknown argument %q ignored", name))
				continue
			}
			return nil, nil, oraerr.Validation(oraerr.CodeInvalidParam, "unknown argument %q", name)
		}
	}

	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return nil, nil, oraerr.Validation(oraerr.CodeMissingParam, "missing required argument %q", name)
		}
	}

	for name, prop := range schema.Properties {
		raw, ok := args[name]
		if !ok {
			if prop != nil && prop.Default != nil {
				out[name] = prop.Default
			}
			continue
		}
		coerced, err := coerce(name, prop, raw)
		if err != nil {
			return nil, nil, err
		}
		out[name] = coerced
	}
	return out, warnings, nil
}

// coerce converts raw to the property's type and checks constraints.
func coerce(name string, prop *Property, raw any) (any, error) {
	if prop == nil || prop.Type == "" {
		return raw, nil
	}
	if raw == nil {
		return nil, badValue(name, prop, "must not be null")
	}

	switch prop.Type {
	case "string":
		s, ok := raw.(string)
		if !ok {
			return nil, badValue(name, prop, "must be a string")
		}
		return s, checkString(name, prop, s)
	case "integer":
		n, err := toNumber(name, prop, raw)
		if err != nil {
			return nil, err
		}
		if n != math.Trunc(n) {
			return nil, badValue(name, prop, "must be an integer")
		}
		if err := checkRange(name, prop, n); err != nil {
			return nil, err
		}
		return int(n), nil
	case "number":
		n, err := toNumber(name, prop, raw)
		if err != nil {
			return nil, err
		}
		return n, checkRange(name, prop, n)
	case "boolean":
		return toBool(name, prop, raw)
	case "array":
		items, ok := raw.([]any)
		if !ok {
			return nil, badValue(name, prop, "must be an array")
		}
		if prop.Items == nil {
			return items, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			coerced, err := coerce(fmt.Sprintf("%s[%d]", name, i), prop.Items, item)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil
	case "object":
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, badValue(name, prop, "must be an object")
		}
		return obj, nil
	default:
		return raw, nil
	}
}

func toNumber(name string, prop *Property, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, badValue(name, prop, "must be a number")
		}
		return n, nil
	case string:
		// Numeric strings are accepted for integer and number.
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, badValue(name, prop, "must be a number")
		}
		return n, nil
	default:
		return 0, badValue(name, prop, "must be a number")
	}
}

func toBool(name string, prop *Property, raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	}
	return false, badValue(name, prop, "must be a boolean")
}

func checkString(name string, prop *Property, s string) error {
	if prop.MinLength != nil && len(s) < *prop.MinLength {
		return badValue(name, prop, fmt.Sprintf("must be at least %d characters", *prop.MinLength))
	}
	if prop.MaxLength != nil && len(s) > *prop.MaxLength {
		return badValue(name, prop, fmt.Sprintf("must be at most %d characters", *prop.MaxLength))
	}
	if prop.Pattern != "" {
		re, err := regexp.Compile(prop.Pattern)
		if err != nil {
			return oraerr.Validation(oraerr.CodeInvalidSchema, "argument %q has an invalid pattern", name)
		}
		if !re.MatchString(s) {
			return badValue(name, prop, "does not match the required pattern")
		}
	}
	if len(prop.Enum) > 0 {
		for _, allowed := range prop.Enum {
			if allowed == s {
				return nil
			}
		}
		return badValue(name, prop, fmt.Sprintf("must be one of %s", enumList(prop.Enum)))
	}
	return nil
}

func checkRange(name string, prop *Property, n float64) error {
	if prop.Minimum != nil && n < *prop.Minimum {
		return badValue(name, prop, fmt.Sprintf("must be >= %g", *prop.Minimum))
	}
	if prop.Maximum != nil && n > *prop.Maximum {
		return badValue(name, prop, fmt.Sprintf("must be <= %g", *prop.Maximum))
	}
	return nil
}

// badValue builds the validation error. The offending value itself is
// never echoed back, so secret arguments cannot leak through it.
func badValue(name string, _ *Property, constraint string) *oraerr.Error {
	return oraerr.Validation(oraerr.CodeInvalidParam, "argument %q %s", name, constraint)
}

// Redact returns a copy of args safe for logging: every password-format
// property is replaced with the redaction placeholder.
func Redact(schema *Schema, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for name, value := range args {
		if schema != nil && schema.Properties[name].secret() {
			out[name] = secret.Redacted
			continue
		}
		out[name] = value
	}
	return out
}

func enumList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}
