package oracle

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject cuts the span from the first '{' to the last '}' out of a
// model answer. Answers often arrive wrapped in Markdown fences or surrounded
// by prose; this is the only unwrapping done.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// DecodeKey extracts the JSON object from raw and decodes the value stored
// under key into out. It reports false when there is no object, the object
// does not parse, the key is absent, or the value has the wrong shape; out is
// left untouched in every one of those cases.
func DecodeKey(raw, key string, out interface{}) bool {
	object, ok := ExtractJSONObject(raw)
	if !ok {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		return false
	}
	value, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(value, out) == nil
}
