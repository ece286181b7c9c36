package cmd

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GuyChahine/deeplogs/internal/reader"
)

func newDescribeCmd() *cobra.Command {
	var percentiles []float64
	cmd := &cobra.Command{
		Use:   "describe [run...]",
		Short: "Summary statistics of each metric per run",
		Long: `Prints count, mean, standard deviation, min, percentiles and max of
every metric of the given runs, or of every run when none is named. Null
values are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			r, err := openReader(cmd.Context(), appInstance, args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			descs, err := r.Describe(args, percentiles)
			if err != nil {
				return err
			}
			for i, d := range descs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := writeDescription(out, d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&percentiles, "percentiles", nil, "percentiles to include, between 0 and 1 (default 0.25,0.5,0.75,0.9)")
	return cmd
}

func writeDescription(out io.Writer, d reader.Description) error {
	fmt.Fprintf(out, "%s\n", d.Run)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\t%s\t\n", strings.Join(d.Metrics, "\t"))
	for i, stat := range d.Stats {
		cells := make([]string, len(d.Values[i]))
		for j, v := range d.Values[i] {
			cells[j] = formatStat(v)
		}
		fmt.Fprintf(w, "%s\t%s\t\n", stat, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
