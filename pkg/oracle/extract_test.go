package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose around", "Sure! Here it is: {\"a\":{\"b\":2}} Hope that helps.", `{"a":{"b":2}}`, true},
		{"no object", "I cannot help with that.", "", false},
		{"reversed braces", "} oops {", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeKeyFailsOpen(t *testing.T) {
	var terms []string

	assert.True(t, DecodeKey("```json\n{\"checklist\": [\"review BFS\", \"practice DFS\"]}\n```", "checklist", &terms))
	assert.Equal(t, []string{"review BFS", "practice DFS"}, terms)

	var missing []string
	assert.False(t, DecodeKey(`{"items": ["x"]}`, "checklist", &missing))
	assert.Nil(t, missing)

	var broken []string
	assert.False(t, DecodeKey(`{"checklist": ["x",}`, "checklist", &broken))
	assert.Nil(t, broken)

	var wrongShape []string
	assert.False(t, DecodeKey(`{"checklist": "not a list"}`, "checklist", &wrongShape))
	assert.Nil(t, wrongShape)
}
