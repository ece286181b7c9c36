// Package cmd defines and implements the CLI commands for the deeplogs
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GuyChahine/deeplogs/internal/app"
	"github.com/GuyChahine/deeplogs/internal/bar"
	"github.com/GuyChahine/deeplogs/internal/config"
	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/session"
	"github.com/GuyChahine/deeplogs/internal/storage"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands use. Tests inject their own.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetStore() storage.Store
	NewSession(ctx context.Context, name, description string, hp map[string]record.Param) (*session.Session, error)
	NewBar(description string, src bar.Source, cfg bar.Config) *bar.Bar
}

// newApp is the application factory. It's a variable so tests can replace
// it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg)
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "deeplogs",
		Short: "Log, inspect and plot training runs.",
		Long: `deeplogs records scalar metrics, hyperparameters and images of
training runs into a storage backend and reads them back for comparison:
summary statistics, hyperparameter tables and terminal plots.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")

	cmd.AddCommand(
		newRunsCmd(),
		newDescribeCmd(),
		newInfosCmd(),
		newPlotCmd(),
		newDemoCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger, _ := zap.NewDevelopment()
		logger.Error("Command execution failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
