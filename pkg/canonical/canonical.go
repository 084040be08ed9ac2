// Package canonical turns an arbitrary JSON-compatible value into a
// single, deterministic byte form: same logical value in, same bytes
// out, regardless of map iteration order. Two callers elsewhere in this
// module lean on that property:
//
//   - internal/normalize produces a stable string form of a structured
//     hook payload (tool_name/tool_input) before it is logged or POSTed,
//     so two observations of identical content compare equal.
//   - internal/audit fingerprints a record's request/response pair so
//     an operator following the audit log with `mediator tail` can spot
//     duplicate content (e.g. a retried UPDATE) without diffing JSON.
//
// Canonical form:
//   - UTF-8 encoding
//   - object keys sorted lexicographically by Unicode codepoint
//   - no insignificant whitespace
//   - numbers in minimal decimal form
//   - arrays retain order
//   - standard JSON escaping
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize converts a JSON-compatible value to canonical JSON bytes.
func Canonicalize(v any) ([]byte, error) {
	return canonicalizeValue(v)
}

// Hash canonicalizes v and returns the lowercase-hex SHA-256 of the
// result, giving equal values (under any map key order) an equal
// fingerprint.
func Hash(v any) (string, error) {
	canonicalBytes, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalizeValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil

	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil

	case string:
		return json.Marshal(val)

	case float64:
		return json.Marshal(val)

	case int:
		return json.Marshal(val)

	case int64:
		return json.Marshal(val)

	case json.Number:
		return []byte(val.String()), nil

	case []any:
		return canonicalizeArray(val)

	case map[string]any:
		return canonicalizeObject(val)

	default:
		return nil, fmt.Errorf("canonical: unsupported type: %T", v)
	}
}

func canonicalizeArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := canonicalizeValue(elem)
		if err != nil {
			return nil, err
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func canonicalizeObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := canonicalizeValue(obj[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
