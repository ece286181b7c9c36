package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/GuyChahine/deeplogs/internal/reader"
)

var skipColor = color.New(color.FgYellow)

// openReader loads the named runs, or every run when names is empty, and
// reports the ones that could not be read on w.
func openReader(ctx context.Context, appInstance App, names []string, w io.Writer) (*reader.Reader, error) {
	r, err := reader.Open(ctx, appInstance.GetStore(), names, reader.WithLogger(appInstance.GetLogger()))
	if err != nil {
		return nil, fmt.Errorf("open runs: %w", err)
	}
	for _, skip := range r.Skipped() {
		_, _ = skipColor.Fprintf(w, "skipped %s\n", skip)
	}
	return r, nil
}
