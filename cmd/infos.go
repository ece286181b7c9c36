package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GuyChahine/deeplogs/internal/reader"
	"github.com/GuyChahine/deeplogs/internal/record"
)

type infoDoc struct {
	Name        string                  `yaml:"name"`
	Description string                  `yaml:"description"`
	RunID       string                  `yaml:"run_id,omitempty"`
	Hyperparams map[string]record.Param `yaml:"hyperparams"`
}

func newInfosCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "infos [run...]",
		Short: "Descriptions and hyperparameters of runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			r, err := openReader(cmd.Context(), appInstance, args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			infos := r.Infos(args)
			switch format {
			case "table":
				return writeInfoTable(cmd.OutOrStdout(), infos)
			case "yaml":
				return writeInfoYAML(cmd.OutOrStdout(), infos)
			default:
				return fmt.Errorf("unknown format %q: want table or yaml", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}

func writeInfoTable(out io.Writer, infos []reader.Info) error {
	keys := reader.HyperparamKeys(infos)
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	header := append([]string{"NAME", "DESCRIPTION"}, keys...)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range reader.InfoRows(infos, keys) {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func writeInfoYAML(out io.Writer, infos []reader.Info) error {
	docs := make([]infoDoc, len(infos))
	for i, info := range infos {
		docs[i] = infoDoc{
			Name:        info.Name,
			Description: info.Description,
			RunID:       info.RunID,
			Hyperparams: info.Hyperparams,
		}
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encode infos: %w", err)
	}
	return enc.Close()
}
