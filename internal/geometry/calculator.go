// Package geometry computes the mass of drawn sheet-metal parts from their
// drawing dimensions.
package geometry

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spherical/drawn-weight/internal/domain"
)

const (
	mm3PerCm3 = 1000.0
	gPerKg    = 1000.0
)

// Calculator applies a fixed MaterialConstants to dimension sets. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	material domain.MaterialConstants
}

// NewCalculator creates a calculator for the given material. A zero value
// selects domain.DefaultMaterial.
func NewCalculator(material domain.MaterialConstants) *Calculator {
	if material == (domain.MaterialConstants{}) {
		material = domain.DefaultMaterial()
	}
	return &Calculator{material: material}
}

// Material returns the constants this calculator was built with.
func (c *Calculator) Material() domain.MaterialConstants {
	return c.material
}

// ComputeWeight returns the part mass in kg rounded to 3 decimals.
func (c *Calculator) ComputeWeight(dims domain.DimensionSet) (float64, error) {
	b, err := c.Compute(dims)
	if err != nil {
		return 0, err
	}
	return b.MassKg, nil
}

// Compute runs the net-area formula and returns every intermediate value.
//
//	net = outer_w*outer_h - cutout + wall - overhead
//	kg  = net*thickness/1000*density/1000
//
// Net area is not clamped; a negative result yields a negative mass.
func (c *Calculator) Compute(dims domain.DimensionSet) (*domain.WeightBreakdown, error) {
	if dims.OuterWidth == nil {
		return nil, domain.MissingFieldError(domain.FieldOuterWidth)
	}
	if dims.OuterHeight == nil {
		return nil, domain.MissingFieldError(domain.FieldOuterHeight)
	}
	if dims.DrawDepth == nil {
		return nil, domain.MissingFieldError(domain.FieldDrawDepth)
	}

	shape := dims.ShapeType
	if shape == "" {
		shape = domain.ShapeRectangular
	}

	depth := *dims.DrawDepth
	b := &domain.WeightBreakdown{
		Shape:     shape,
		GrossArea: *dims.OuterWidth * *dims.OuterHeight,
		Overhead:  c.material.OverheadMM2,
	}

	switch shape {
	case domain.ShapeRound:
		if dims.DrawDiameter == nil {
			return nil, domain.MissingFieldError(domain.FieldDrawDiameter)
		}
		radius := dims.CutoutDiameter / 2.0
		b.CutoutArea = math.Pi * (radius * radius)
		b.WallArea = (math.Pi * *dims.DrawDiameter) * depth
	case domain.ShapeRectangular:
		b.CutoutArea = dims.DrawWidth * dims.DrawHeight
		perimeter := 2 * (dims.DrawWidth + dims.DrawHeight)
		b.WallArea = perimeter * depth
	default:
		return nil, domain.ValidationError(fmt.Sprintf("shape_type %q", shape), domain.ErrUnknownShapeType)
	}

	b.NetArea = b.GrossArea - b.CutoutArea + b.WallArea - b.Overhead
	b.VolumeMM3 = b.NetArea * c.material.ThicknessMM
	b.VolumeCM3 = b.VolumeMM3 / mm3PerCm3
	b.MassG = b.VolumeCM3 * c.material.DensityGPerCm3
	b.MassKg = RoundMass(b.MassG / gPerKg)

	return b, nil
}

// RoundMass rounds kg to 3 decimal places on its exact binary value. Only
// exact ties such as 0.0625 go to even; 0.2354999... stays at 0.235.
func RoundMass(kg float64) float64 {
	if math.IsNaN(kg) || math.IsInf(kg, 0) {
		return kg
	}
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(kg, 'f', 3, 64), 64)
	return rounded
}
