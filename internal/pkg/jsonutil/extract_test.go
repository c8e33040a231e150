package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare object", `{"score": 0.4}`, `{"score": 0.4}`, true},
		{"fenced with tag", "```json\n{\"score\": -0.2}\n```", `{"score": -0.2}`, true},
		{"fenced no tag", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose around object", `Sure, here it is: {"score": 1} hope that helps`, `{"score": 1}`, true},
		{"array", `[1, 2, 3]`, `[1, 2, 3]`, true},
		{"brace inside string", `{"msg": "use } carefully", "v": 1}`, `{"msg": "use } carefully", "v": 1}`, true},
		{"no json", "I cannot answer that.", "", false},
		{"empty", "", "", false},
		{"unterminated", `{"score": 0.4`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
