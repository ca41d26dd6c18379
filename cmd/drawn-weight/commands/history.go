package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/drawn-weight/cmd/drawn-weight/ui"
	"github.com/spherical/drawn-weight/internal/extract"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or export saved analyses",
	}
	cmd.AddCommand(newHistoryListCmd(root), newHistoryExportCmd(root))
	return cmd
}

func newHistoryListCmd(root *rootOptions) *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show saved analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := root.weigher()
			if err != nil {
				return err
			}
			defer w.Close()

			recs, err := w.History().ListByUser(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				ui.Info("No history for %s", user)
				return nil
			}

			rows := make([][]string, 0, len(recs))
			for _, r := range recs {
				dims := extract.Normalize(r.ExtractedData)
				shape := string(dims.ShapeType)
				if shape == "" {
					shape = "rectangular"
				}
				rows = append(rows, []string{
					r.Timestamp.Local().Format("2006-01-02 15:04"),
					r.Filename,
					shape,
					fmt.Sprintf("%.3f", r.WeightKg),
					r.Model,
				})
			}
			ui.Table([]string{"TIME", "FILE", "SHAPE", "WEIGHT (KG)", "MODEL"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "cli", "user id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show")
	return cmd
}

func newHistoryExportCmd(root *rootOptions) *cobra.Command {
	var (
		user  string
		out   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write saved analyses to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := root.weigher()
			if err != nil {
				return err
			}
			defer w.Close()

			var bar *ui.ProgressBar
			data, err := w.Exporter().HistoryXLSX(cmd.Context(), user, limit, func(done, total int) {
				if bar == nil {
					bar = ui.NewProgressBar(total, "Writing rows")
				}
				bar.Set(done)
			})
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			ui.Success("Exported history for %s to %s", user, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "cli", "user id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .xlsx path (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records (default 100)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
