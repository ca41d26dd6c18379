package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/drawn-weight/cmd/drawn-weight/ui"
	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/pkg/weigher"
)

type weighOptions struct {
	apiKey string
	user   string
	save   bool
	json   bool
}

func newWeighCmd(root *rootOptions) *cobra.Command {
	opts := &weighOptions{}

	cmd := &cobra.Command{
		Use:   "weigh <drawing>",
		Short: "Extract dimensions from a drawing and compute its weight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeigh(cmd.Context(), root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "vision API key (default from environment or config)")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "cli", "user id for history records")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save a successful result to history")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the full result as JSON")
	return cmd
}

func runWeigh(parent context.Context, root *rootOptions, opts *weighOptions, path string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extra []weigher.Option
	if !opts.save {
		extra = append(extra, weigher.WithoutHistory())
	}
	w, err := root.weigher(extra...)
	if err != nil {
		return err
	}
	defer w.Close()

	spin := ui.NewSpinner(fmt.Sprintf("Reading %s ...", path))
	if !opts.json {
		spin.Start()
	}
	res, err := w.Weigh(ctx, path, opts.apiKey)
	spin.Stop()
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(res)
	}

	if !res.Succeeded() {
		return fmt.Errorf("no weight for %s: %s", res.Filename, res.Failure)
	}

	if opts.save {
		rec, err := w.Record(ctx, opts.user, res)
		if err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		if !opts.json {
			ui.Success("Saved to history as %s", rec.ID)
		}
	}
	return nil
}

func printResult(res *weigher.Result) {
	ui.Section(res.Filename)

	if res.Outcome != nil {
		model := res.Outcome.Model
		if res.Outcome.Cached {
			model += " (cached)"
		}
		if model != "" {
			ui.KeyValue("Model", model)
		}
		if ui.Verbose() {
			for _, a := range res.Outcome.Attempts {
				status := "ok"
				if !a.Succeeded() {
					status = string(a.Reason)
				}
				ui.Info("attempt %d %s: %s (%s)", a.Index+1, a.Model, status, a.Elapsed.Round(time.Millisecond))
			}
		}
	}

	if res.Raw != nil {
		d := res.Dimensions
		shape := string(d.ShapeType)
		if shape == "" {
			shape = "rectangular (default)"
		}
		ui.KeyValue("Shape", shape)
		ui.KeyValue("Outer width", ui.FormatMM(d.OuterWidth))
		ui.KeyValue("Outer height", ui.FormatMM(d.OuterHeight))
		ui.KeyValue("Draw depth", ui.FormatMM(d.DrawDepth))
		if d.ShapeType == domain.ShapeRound {
			ui.KeyValue("Draw diameter", ui.FormatMM(d.DrawDiameter))
			ui.KeyValue("Cutout diameter", fmt.Sprintf("%.2f mm", d.CutoutDiameter))
		} else {
			ui.KeyValue("Draw width", fmt.Sprintf("%.2f mm", d.DrawWidth))
			ui.KeyValue("Draw height", fmt.Sprintf("%.2f mm", d.DrawHeight))
		}
	}

	if res.Breakdown != nil && ui.Verbose() {
		b := res.Breakdown
		ui.KeyValue("Net area", fmt.Sprintf("%.1f mm²", b.NetArea))
		ui.KeyValue("Volume", fmt.Sprintf("%.3f cm³", b.VolumeCM3))
	}

	if res.Succeeded() {
		ui.Weight(*res.WeightKg)
		return
	}
	ui.Error("%s", res.Failure)
}
