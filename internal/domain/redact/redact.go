package redact

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RedactString runs the detector set over a single string and returns the
// result with every accepted match replaced by its placeholder. A string
// with no matches is returned unchanged (same underlying bytes, by value).
func RedactString(s string) string {
	if s == "" {
		return s
	}
	if cached, ok := globalCache.get(s); ok {
		return cached
	}

	candidates := findCandidates(s)
	kept := resolveOverlaps(candidates)
	out := applyPlaceholders(s, kept)

	globalCache.put(s, out)
	return out
}

// Redact walks v -- the generic shape produced by decoding JSON with
// UseNumber (map[string]interface{}, []interface{}, string, json.Number,
// bool, nil) or by decoding it the plain way (float64 instead of
// json.Number) -- and returns a value of the same shape with every
// sensitive span replaced.
//
// Map keys are never redacted. Array length and map key sets never change.
// A string value is, when it itself parses as a JSON object or array,
// recursively redacted and re-serialized; otherwise it is redacted as flat
// text. A number is redacted (and so becomes a string) only if its decimal
// form matches a sensitive pattern; a non-matching number keeps its
// original numeric value and type. Booleans and nil pass through untouched.
//
// Redact never panics and never returns an error: an input it doesn't
// recognize is returned unchanged.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case map[string]interface{}:
		return redactMap(val)
	case []interface{}:
		return redactSlice(val)
	case string:
		return redactStringValue(val)
	case json.Number:
		return redactNumberString(string(val))
	case float64:
		return redactFloat(val)
	case int, int64, int32:
		return val
	default:
		return val
	}
}

func redactMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Redact(v)
	}
	return out
}

func redactSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = Redact(v)
	}
	return out
}

// redactStringValue is the top-level-JSON-string case from the contract:
// if s itself decodes as a JSON object or array, redact is applied to that
// decoded tree and the result is re-serialized back to a JSON string,
// preserving validity. Any other case -- scalar JSON, or text that isn't
// JSON at all -- falls back to flat string redaction.
func redactStringValue(s string) interface{} {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err == nil && decoderFullyConsumed(dec) {
		switch generic.(type) {
		case map[string]interface{}, []interface{}:
			redacted := Redact(generic)
			b, err := json.Marshal(redacted)
			if err == nil {
				return string(b)
			}
		}
	}
	return RedactString(s)
}

// decoderFullyConsumed reports whether dec has nothing left but whitespace,
// so a string like `"5 apples"` (which starts decoding as the number 5)
// isn't mistaken for valid JSON.
func decoderFullyConsumed(dec *json.Decoder) bool {
	var extra json.RawMessage
	return dec.Decode(&extra) != nil
}

func redactNumberString(s string) interface{} {
	out := RedactString(s)
	if out == s {
		if n, err := json.Number(s).Float64(); err == nil {
			return n
		}
		return s
	}
	return out
}

func redactFloat(f float64) interface{} {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	out := RedactString(s)
	if out == s {
		return f
	}
	return out
}
