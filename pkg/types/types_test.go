package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectCenter(t *testing.T) {
	tests := []struct {
		name   string
		s      Subject
		wx, wy float64
	}{
		{"explicit center", Subject{Cx: 0.2, Cy: 0.7, Box: Box{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}}, 0.2, 0.7},
		{"box when center missing", Subject{Box: Box{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}}, 0.6, 0.6},
		{"box when center out of range", Subject{Cx: 1.5, Cy: 0.5, Box: Box{X: 0, Y: 0, W: 0.5, H: 0.5}}, 0.25, 0.25},
		{"NaN center", Subject{Cx: math.NaN(), Cy: 0.5}, 0.5, 0.5},
		{"nothing usable", Subject{Box: Box{X: 0.9, Y: 0.9, W: 0.5, H: 0.5}}, 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.s.Center()
			assert.InDelta(t, tt.wx, x, 1e-12)
			assert.InDelta(t, tt.wy, y, 1e-12)
		})
	}
}

func TestBoxValid(t *testing.T) {
	assert.True(t, Box{X: 0, Y: 0, W: 1, H: 1}.Valid())
	assert.False(t, Box{X: 0.5, Y: 0, W: 0.6, H: 1}.Valid())
	assert.False(t, Box{W: 0, H: 1}.Valid())
	assert.False(t, Box{X: -0.1, W: 0.5, H: 0.5}.Valid())
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		label   string
		wantErr bool
	}{
		{name: "plain", raw: `{"primary":{"label":"cat"}}`, label: "cat"},
		{name: "fenced", raw: "```json\n{\"primary\":{\"label\":\"cat\"}}\n```", label: "cat"},
		{name: "comments and trailing comma", raw: "{\n// subject\n\"primary\":{\"label\":\"car\",/* best */},\n}", label: "car"},
		{name: "prose around json", raw: `Sure! {"primary":{"label":"tree"}} Hope this helps.`, label: "tree"},
		{name: "no json", raw: "I see a tree", wantErr: true},
		{name: "broken json", raw: `{"primary": {"label": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResult(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, result.Primary.Label)
		})
	}

	_, err := ParseResult("nothing here")
	assert.ErrorIs(t, err, ErrNoJSON)
}
