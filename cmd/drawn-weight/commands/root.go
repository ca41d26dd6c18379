// Package commands implements the drawn-weight CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/drawn-weight/cmd/drawn-weight/ui"
	"github.com/spherical/drawn-weight/internal/config"
	"github.com/spherical/drawn-weight/internal/observability"
	"github.com/spherical/drawn-weight/pkg/weigher"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

type rootOptions struct {
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "drawn-weight",
		Short: "Estimate the mass of drawn sheet-metal parts from engineering drawings",
		Long: `drawn-weight reads a drawing (PDF or image), asks a vision model for the
part's bounding dimensions and computes the blank mass locally from the
configured material constants.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.InitUI(opts.noColor, opts.verbose)
			ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())

			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			opts.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      "console",
				Output:      cmd.ErrOrStderr(),
				ServiceName: cfg.Observability.ServiceName,
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newWeighCmd(opts),
		newCalcCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

func (o *rootOptions) weigher(extra ...weigher.Option) (*weigher.Weigher, error) {
	return weigher.New(o.cfg, o.logger, extra...)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
