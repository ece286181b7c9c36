package cmd

import (
	"github.com/spf13/cobra"

	"github.com/GuyChahine/deeplogs/internal/reader"
)

func newPlotCmd() *cobra.Command {
	opts := reader.DefaultPlotOptions()
	cmd := &cobra.Command{
		Use:   "plot [run...]",
		Short: "Plot metrics of runs in the terminal",
		Long: `Draws one chart per metric with one line per run. Values are
smoothed with an exponential moving average whose history weight is
--smooth; 0 plots raw values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			r, err := openReader(cmd.Context(), appInstance, args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.Runs = args
			return r.Plot(cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.Metrics, "metrics", nil, "metrics to plot (default all)")
	f.IntVar(&opts.NCols, "ncols", opts.NCols, "charts per row")
	f.IntVar(&opts.Width, "width", opts.Width, "chart width in cells")
	f.IntVar(&opts.Height, "height", opts.Height, "chart height in rows")
	f.Float64Var(&opts.Smooth, "smooth", opts.Smooth, "smoothing factor in [0, 1)")
	f.StringVar(&opts.XLabel, "xlabel", opts.XLabel, "x axis label")
	return cmd
}
