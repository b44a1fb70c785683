package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeColorParams(t *testing.T) {
	cases := []struct {
		name string
		tool string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "full fill color",
			tool: "set_fill_color",
			in:   map[string]any{"nodeId": "1:2", "r": 0.5, "g": 0.25, "b": 1.0, "a": 0.8},
			want: map[string]any{
				"nodeId": "1:2",
				"color":  map[string]any{"r": 0.5, "g": 0.25, "b": 1.0, "a": 0.8},
				"weight": 1.0,
			},
		},
		{
			name: "alpha defaults to one",
			tool: "set_stroke_color",
			in:   map[string]any{"nodeId": "1:2", "r": 1.0, "g": 0.0, "b": 0.0},
			want: map[string]any{
				"nodeId": "1:2",
				"color":  map[string]any{"r": 1.0, "g": 0.0, "b": 0.0, "a": 1.0},
				"weight": 1.0,
			},
		},
		{
			name: "explicit weight survives",
			tool: "set_stroke_color",
			in:   map[string]any{"nodeId": "9:9", "r": 0.1, "g": 0.2, "b": 0.3, "weight": 4.0},
			want: map[string]any{
				"nodeId": "9:9",
				"color":  map[string]any{"r": 0.1, "g": 0.2, "b": 0.3, "a": 1.0},
				"weight": 4.0,
			},
		},
		{
			name: "unknown params pass through",
			tool: "set_fill_color",
			in:   map[string]any{"nodeId": "1:2", "r": 1.0, "g": 1.0, "b": 1.0, "blendMode": "MULTIPLY"},
			want: map[string]any{
				"nodeId":    "1:2",
				"color":     map[string]any{"r": 1.0, "g": 1.0, "b": 1.0, "a": 1.0},
				"weight":    1.0,
				"blendMode": "MULTIPLY",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanonicalizeParams(tc.tool, tc.in))
		})
	}
}

func TestCanonicalizeLeavesOtherToolsAlone(t *testing.T) {
	in := map[string]any{"nodeId": "1:2", "r": 0.5}
	out := CanonicalizeParams("move_node", in)
	assert.Equal(t, in, out)
}
