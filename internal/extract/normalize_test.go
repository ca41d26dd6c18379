package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/drawn-weight/internal/domain"
)

func TestNormalize_Rectangular(t *testing.T) {
	dims := Normalize(map[string]any{
		"shape_type":      " Rectangular ",
		"outer_width":     json.Number("150"),
		"outer_height":    100.0,
		"draw_depth":      "19.05 mm",
		"draw_width":      "120",
		"draw_height":     json.Number("70.5"),
		"draw_diameter":   nil,
		"cutout_diameter": nil,
	})

	assert.Equal(t, domain.ShapeRectangular, dims.ShapeType)
	require.NotNil(t, dims.OuterWidth)
	assert.Equal(t, 150.0, *dims.OuterWidth)
	assert.Equal(t, 100.0, *dims.OuterHeight)
	assert.InDelta(t, 19.05, *dims.DrawDepth, 1e-9)
	assert.Equal(t, 120.0, dims.DrawWidth)
	assert.Equal(t, 70.5, dims.DrawHeight)
	assert.Nil(t, dims.DrawDiameter)
	assert.Zero(t, dims.CutoutDiameter)
}

func TestNormalize_RequiredStayAbsent(t *testing.T) {
	dims := Normalize(map[string]any{
		"outer_width":  nil,
		"outer_height": "n/a",
		"draw_width":   "unknown",
	})

	assert.Empty(t, dims.ShapeType)
	assert.Nil(t, dims.OuterWidth)
	assert.Nil(t, dims.OuterHeight)
	assert.Nil(t, dims.DrawDepth)
	assert.Zero(t, dims.DrawWidth)
}

func TestParseLength(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"19.05", 19.05, true},
		{"19,05", 19.05, true},
		{"19.05mm", 19.05, true},
		{" 25 MM ", 25, true},
		{"-3", -3, true},
		{"", 0, false},
		{"mm", 0, false},
		{"twelve", 0, false},
		{"1,234.5", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseLength(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}
