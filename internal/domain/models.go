package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ShapeType selects which draw fields participate in the weight formula
type ShapeType string

const (
	ShapeRectangular ShapeType = "rectangular"
	ShapeRound       ShapeType = "round"
)

// Field names as they appear in extracted JSON and in history records.
const (
	FieldShapeType      = "shape_type"
	FieldOuterWidth     = "outer_width"
	FieldOuterHeight    = "outer_height"
	FieldDrawDepth      = "draw_depth"
	FieldDrawWidth      = "draw_width"
	FieldDrawHeight     = "draw_height"
	FieldDrawDiameter   = "draw_diameter"
	FieldCutoutDiameter = "cutout_diameter"
)

// DimensionFields lists the eight fields requested from the vision model, in prompt order.
var DimensionFields = []string{
	FieldShapeType,
	FieldOuterWidth,
	FieldOuterHeight,
	FieldDrawDepth,
	FieldDrawWidth,
	FieldDrawHeight,
	FieldDrawDiameter,
	FieldCutoutDiameter,
}

// DimensionSet is the normalized drawing measurement set, all lengths in mm.
// Required fields are pointers so absence survives normalization.
type DimensionSet struct {
	ShapeType      ShapeType `json:"shape_type"`
	OuterWidth     *float64  `json:"outer_width"`
	OuterHeight    *float64  `json:"outer_height"`
	DrawDepth      *float64  `json:"draw_depth"`
	DrawWidth      float64   `json:"draw_width"`
	DrawHeight     float64   `json:"draw_height"`
	DrawDiameter   *float64  `json:"draw_diameter"`
	CutoutDiameter float64   `json:"cutout_diameter"`
}

// Float returns a pointer to v, for building DimensionSets literally.
func Float(v float64) *float64 {
	return &v
}

// MaterialConstants are process calibration values fed into the calculator
type MaterialConstants struct {
	DensityGPerCm3 float64 `yaml:"density_g_cm3" json:"density_g_cm3"`
	ThicknessMM    float64 `yaml:"thickness_mm" json:"thickness_mm"`
	OverheadMM2    float64 `yaml:"overhead_mm2" json:"overhead_mm2"`
}

// DefaultMaterial returns the drawn steel calibration: 7.85 g/cm³, 1.50 mm
// effective wall thickness, 350 mm² slot/corner deduction.
func DefaultMaterial() MaterialConstants {
	return MaterialConstants{
		DensityGPerCm3: 7.85,
		ThicknessMM:    1.50,
		OverheadMM2:    350.0,
	}
}

// WeightBreakdown records every intermediate of a weight computation
type WeightBreakdown struct {
	Shape      ShapeType `json:"shape_type"`
	GrossArea  float64   `json:"gross_area_mm2"`
	CutoutArea float64   `json:"cutout_area_mm2"`
	WallArea   float64   `json:"wall_area_mm2"`
	Overhead   float64   `json:"overhead_mm2"`
	NetArea    float64   `json:"net_area_mm2"`
	VolumeMM3  float64   `json:"volume_mm3"`
	VolumeCM3  float64   `json:"volume_cm3"`
	MassG      float64   `json:"mass_g"`
	MassKg     float64   `json:"mass_kg"`
}

// Image is an encoded raster handed to a vision model
type Image struct {
	Data     []byte
	MIMEType string
}

// RasterImage is the single raster produced for a drawing. When Temporary is
// set the file belongs to the run and is removed by Release.
type RasterImage struct {
	Path        string
	MIMEType    string
	Temporary   bool
	SourcePages int
	Width       int
	Height      int

	once    sync.Once
	release func() error
	err     error
}

// NewRasterImage wraps a raster path. release may be nil for caller-owned files.
func NewRasterImage(path, mime string, temporary bool, release func() error) *RasterImage {
	return &RasterImage{
		Path:      path,
		MIMEType:  mime,
		Temporary: temporary,
		release:   release,
	}
}

// Release removes any temporary artifact. Safe to call more than once.
func (r *RasterImage) Release() error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		if r.release != nil {
			r.err = r.release()
		}
	})
	return r.err
}

// FailureReason classifies why an extraction attempt or run failed
type FailureReason string

const (
	ReasonQuotaExhausted    FailureReason = "quota-exhausted"
	ReasonModelUnavailable  FailureReason = "model-unavailable"
	ReasonMalformedResponse FailureReason = "malformed-response"
	ReasonEmptyResponse     FailureReason = "empty-response"
	ReasonUnclassified      FailureReason = "unclassified-error"
	ReasonNoModelSucceeded  FailureReason = "no-model-succeeded"
)

// AttemptRecord is the diagnostic record of one model attempt
type AttemptRecord struct {
	Index   int           `json:"index"`
	Model   string        `json:"model"`
	Reason  FailureReason `json:"reason,omitempty"` // empty on success
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Succeeded reports whether the attempt produced the winning response.
func (a AttemptRecord) Succeeded() bool {
	return a.Reason == ""
}

// ExtractionOutcome is the result of one orchestration run
type ExtractionOutcome struct {
	Model    string          `json:"model,omitempty"`
	Fields   map[string]any  `json:"fields,omitempty"`
	RawText  string          `json:"raw_text,omitempty"`
	Reason   FailureReason   `json:"reason,omitempty"` // last classified reason when exhausted
	Attempts []AttemptRecord `json:"attempts"`
	Cached   bool            `json:"cached,omitempty"`
}

// Succeeded reports whether some model produced a usable field set.
func (o *ExtractionOutcome) Succeeded() bool {
	return o != nil && o.Fields != nil
}

// FailureString renders the aggregate failure, e.g. "no-model-succeeded: quota-exhausted".
func (o *ExtractionOutcome) FailureString() string {
	if o.Succeeded() {
		return ""
	}
	if o == nil || o.Reason == "" {
		return string(ReasonNoModelSucceeded)
	}
	return string(ReasonNoModelSucceeded) + ": " + string(o.Reason)
}

// HistoryRecord is one persisted successful analysis
type HistoryRecord struct {
	ID            uuid.UUID      `json:"id"`
	UserID        string         `json:"user_id"`
	Filename      string         `json:"filename"`
	WeightKg      float64        `json:"calculated_weight_kg"`
	ExtractedData map[string]any `json:"extracted_data"`
	Model         string         `json:"model,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
