package translate

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Fields is the decoded field set of a point: field key to field value, where
// a value is always a float64 or a string. Booleans and integers are coerced
// to float64 so a measurement's fields stay type-stable in the database
// regardless of how a particular reading happens to be encoded.
type Fields map[string]any

// Decode classifies a raw payload and produces a non-empty field set.
// Classification is an ordered fallback, first match wins:
//
//  1. A JSON object yields one field per key, with per-key coercion:
//     bool -> 1.0/0.0, number -> float64, string -> kept verbatim.
//     Nested objects and arrays are rejected with UnsupportedValueError.
//  2. A payload parseable as a float yields {"value": <float64>}.
//  3. Anything else yields {"value": <string>} with the text kept verbatim.
//
// Only an empty (or whitespace-only) payload fails, with ErrEmptyPayload.
func Decode(raw []byte) (Fields, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	if fields, ok, err := decodeObject(trimmed); ok {
		return fields, err
	}

	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return Fields{"value": f}, nil
	}

	return Fields{"value": string(trimmed)}, nil
}

// DecodeVerbatim is Decode with the numeric stage disabled: scalar payloads
// are always kept as strings. It backs the per-measurement stringify option,
// for sensors that emit values like version numbers which would otherwise be
// mangled by float parsing. Structured payloads decode exactly as in Decode.
func DecodeVerbatim(raw []byte) (Fields, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	if fields, ok, err := decodeObject(trimmed); ok {
		return fields, err
	}

	return Fields{"value": string(trimmed)}, nil
}

// decodeObject attempts the structured tier. The second return value reports
// whether the payload was a JSON object at all; only then are the fields and
// error meaningful.
func decodeObject(trimmed []byte) (Fields, bool, error) {
	// Cheap pre-check: json.Unmarshal would also accept bare scalars and
	// arrays, which belong to the later tiers.
	if trimmed[0] != '{' {
		return nil, false, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false, nil
	}
	if len(obj) == 0 {
		// A payload of "{}" decodes to zero fields, which is a decoding
		// failure rather than a valid empty point.
		return nil, true, ErrEmptyPayload
	}

	fields := make(Fields, len(obj))
	for key, rawValue := range obj {
		value, err := coerceValue(key, rawValue)
		if err != nil {
			return nil, true, err
		}
		fields[key] = value
	}
	return fields, true, nil
}

// coerceValue maps a single JSON value to a field value.
func coerceValue(key string, raw json.RawMessage) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &UnsupportedValueError{Key: key}
	}

	switch v := value.(type) {
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case nil:
		// JSON null carries no value for the field.
		return nil, &UnsupportedValueError{Key: key}
	default:
		// Remaining cases are nested objects and arrays.
		return nil, &UnsupportedValueError{Key: key}
	}
}
