package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/drawn-weight/cmd/drawn-weight/ui"
	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/extract"
	"github.com/spherical/drawn-weight/internal/geometry"
)

type calcOptions struct {
	shape          string
	outerWidth     float64
	outerHeight    float64
	drawDepth      float64
	drawWidth      float64
	drawHeight     float64
	drawDiameter   float64
	cutoutDiameter float64
	jsonFile       string
}

func newCalcCmd(root *rootOptions) *cobra.Command {
	opts := &calcOptions{}

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute weight from known dimensions, without a drawing",
		Example: `  drawn-weight calc --outer-width 150 --outer-height 100 --draw-depth 19.05 --draw-width 120 --draw-height 70
  drawn-weight calc --shape round --outer-width 150 --outer-height 150 --draw-diameter 80 --draw-depth 20 --cutout-diameter 30
  drawn-weight calc --json dims.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dims, err := opts.dimensions(cmd)
			if err != nil {
				return err
			}

			b, err := geometry.NewCalculator(root.cfg.Material).Compute(dims)
			if err != nil {
				return err
			}
			printBreakdown(b)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.shape, "shape", "rectangular", "rectangular or round")
	f.Float64Var(&opts.outerWidth, "outer-width", 0, "outer width in mm")
	f.Float64Var(&opts.outerHeight, "outer-height", 0, "outer height in mm")
	f.Float64Var(&opts.drawDepth, "draw-depth", 0, "draw depth in mm")
	f.Float64Var(&opts.drawWidth, "draw-width", 0, "inner draw width in mm (rectangular)")
	f.Float64Var(&opts.drawHeight, "draw-height", 0, "inner draw height in mm (rectangular)")
	f.Float64Var(&opts.drawDiameter, "draw-diameter", 0, "draw diameter in mm (round)")
	f.Float64Var(&opts.cutoutDiameter, "cutout-diameter", 0, "central cutout diameter in mm (round)")
	f.StringVar(&opts.jsonFile, "json", "", "read dimensions from a JSON file ('-' for stdin)")
	return cmd
}

// dimensions builds the set from --json or from flags. Required flags that
// were not given stay absent so the calculator names them.
func (o *calcOptions) dimensions(cmd *cobra.Command) (domain.DimensionSet, error) {
	if o.jsonFile != "" {
		return readDimensionsJSON(o.jsonFile, cmd.InOrStdin())
	}

	f := cmd.Flags()
	given := func(name string, v float64) *float64 {
		if !f.Changed(name) {
			return nil
		}
		return domain.Float(v)
	}

	return domain.DimensionSet{
		ShapeType:      domain.ShapeType(o.shape),
		OuterWidth:     given("outer-width", o.outerWidth),
		OuterHeight:    given("outer-height", o.outerHeight),
		DrawDepth:      given("draw-depth", o.drawDepth),
		DrawDiameter:   given("draw-diameter", o.drawDiameter),
		DrawWidth:      o.drawWidth,
		DrawHeight:     o.drawHeight,
		CutoutDiameter: o.cutoutDiameter,
	}, nil
}

func readDimensionsJSON(path string, stdin io.Reader) (domain.DimensionSet, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.DimensionSet{}, domain.IOError("Failed to open dimensions file", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return domain.DimensionSet{}, domain.ValidationError("dimensions file is not a JSON object", err)
	}
	return extract.Normalize(raw), nil
}

func printBreakdown(b *domain.WeightBreakdown) {
	ui.Section("Weight breakdown")
	ui.KeyValue("Shape", b.Shape)
	ui.KeyValue("Gross area", fmt.Sprintf("%.1f mm²", b.GrossArea))
	ui.KeyValue("Cutout area", fmt.Sprintf("%.1f mm²", b.CutoutArea))
	ui.KeyValue("Wall area", fmt.Sprintf("%.1f mm²", b.WallArea))
	ui.KeyValue("Overhead", fmt.Sprintf("%.1f mm²", b.Overhead))
	ui.KeyValue("Net area", fmt.Sprintf("%.1f mm²", b.NetArea))
	ui.KeyValue("Volume", fmt.Sprintf("%.3f cm³", b.VolumeCM3))
	ui.KeyValue("Mass", fmt.Sprintf("%.1f g", b.MassG))
	ui.Weight(b.MassKg)
}
