package wire

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Keys the upstream schema validator accepts on a JSON Schema node.
var allowedSchemaKeys = map[string]bool{
	"type":                 true,
	"description":          true,
	"title":                true,
	"properties":           true,
	"required":             true,
	"items":                true,
	"enum":                 true,
	"default":              true,
	"additionalProperties": true,
	"minimum":              true,
	"maximum":              true,
	"minLength":            true,
	"maxLength":            true,
	"pattern":              true,
}

// Combinator keys the upstream rejects outright; a node using one is
// collapsed to a permissive string schema.
var schemaCombinators = []string{"$ref", "$defs", "definitions", "anyOf", "oneOf", "allOf", "not"}

var allowedSchemaTypes = map[string]bool{
	"object":  true,
	"array":   true,
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"null":    true,
}

// SanitizeSchema rewrites a tool input schema into the subset the
// upstream accepts. Unsupported keys are dropped, unknown type names are
// coerced to "string", and combinator nodes ($ref, anyOf, ...) collapse
// to a permissive string schema. The second return reports whether
// anything was altered, so callers can surface the coercion instead of
// silently losing schema detail.
func SanitizeSchema(schema json.RawMessage) (json.RawMessage, bool, error) {
	if len(schema) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`), false, nil
	}
	parsed := gjson.ParseBytes(schema)
	if !parsed.IsObject() {
		return nil, false, &EncodeError{Field: "input_schema", Message: "schema is not a JSON object"}
	}

	changed := false
	out := sanitizeNode(parsed, &changed)
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, false, &EncodeError{Field: "input_schema", Message: "re-marshal sanitized schema", Cause: err}
	}
	return encoded, changed, nil
}

func sanitizeNode(node gjson.Result, changed *bool) map[string]any {
	for _, key := range schemaCombinators {
		if node.Get(key).Exists() {
			*changed = true
			collapsed := map[string]any{"type": "string"}
			if desc := node.Get("description"); desc.Exists() {
				collapsed["description"] = desc.String()
			}
			return collapsed
		}
	}

	out := make(map[string]any)
	node.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !allowedSchemaKeys[name] {
			*changed = true
			return true
		}

		switch name {
		case "type":
			t := value.String()
			if !allowedSchemaTypes[t] {
				*changed = true
				t = "string"
			}
			out[name] = t
		case "properties":
			props := make(map[string]any)
			value.ForEach(func(pk, pv gjson.Result) bool {
				if pv.IsObject() {
					props[pk.String()] = sanitizeNode(pv, changed)
				} else {
					*changed = true
				}
				return true
			})
			out[name] = props
		case "items":
			if value.IsObject() {
				out[name] = sanitizeNode(value, changed)
			} else {
				*changed = true
				out[name] = map[string]any{"type": "string"}
			}
		case "additionalProperties":
			if value.IsObject() {
				out[name] = sanitizeNode(value, changed)
			} else {
				out[name] = value.Value()
			}
		default:
			out[name] = value.Value()
		}
		return true
	})

	if _, ok := out["type"]; !ok {
		// Upstream requires an explicit type on every node.
		*changed = true
		if _, hasProps := out["properties"]; hasProps {
			out["type"] = "object"
		} else {
			out["type"] = "string"
		}
	}
	return out
}
