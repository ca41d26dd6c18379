package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spherical/drawn-weight/internal/domain"
)

// Normalize coerces a raw field mapping into a DimensionSet. Optional lengths
// that are null or unparseable become 0; required ones stay nil so the
// calculator reports them missing.
func Normalize(raw map[string]any) domain.DimensionSet {
	var dims domain.DimensionSet

	if s, ok := raw[domain.FieldShapeType].(string); ok {
		dims.ShapeType = domain.ShapeType(strings.ToLower(strings.TrimSpace(s)))
	}

	dims.OuterWidth = optionalPtr(raw, domain.FieldOuterWidth)
	dims.OuterHeight = optionalPtr(raw, domain.FieldOuterHeight)
	dims.DrawDepth = optionalPtr(raw, domain.FieldDrawDepth)
	dims.DrawDiameter = optionalPtr(raw, domain.FieldDrawDiameter)

	dims.DrawWidth = valueOrZero(raw, domain.FieldDrawWidth)
	dims.DrawHeight = valueOrZero(raw, domain.FieldDrawHeight)
	dims.CutoutDiameter = valueOrZero(raw, domain.FieldCutoutDiameter)

	return dims
}

func optionalPtr(raw map[string]any, key string) *float64 {
	f, ok := toFloat(raw[key])
	if !ok {
		return nil
	}
	return &f
}

func valueOrZero(raw map[string]any, key string) float64 {
	f, _ := toFloat(raw[key])
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseLength(n)
	default:
		return 0, false
	}
}

// parseLength accepts "19.05", "19,05", "19.05 mm" and "19.05mm".
func parseLength(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "mm"))
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
