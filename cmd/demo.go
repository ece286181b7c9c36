package cmd

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GuyChahine/deeplogs/internal/bar"
	"github.com/GuyChahine/deeplogs/internal/hparams"
	"github.com/GuyChahine/deeplogs/internal/imaging"
	"github.com/GuyChahine/deeplogs/internal/record"
)

type demoOptions struct {
	name        string
	description string
	epochs      int
	steps       int
	hparamsFile string
	set         []string
	images      bool
	seed        uint64
}

func newDemoCmd() *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record a synthetic training run",
		Long: `Simulates a training loop: logs a decaying loss and a rising
accuracy at every step behind a progress bar, and a grid of sample images at
the end of each epoch. Useful to try the readers and backends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runDemo(cmd, appInstance, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "demo", "session name")
	f.StringVar(&opts.description, "description", "synthetic run", "session description")
	f.IntVar(&opts.epochs, "epochs", 2, "number of epochs")
	f.IntVar(&opts.steps, "steps", 200, "steps per epoch")
	f.StringVar(&opts.hparamsFile, "hparams", "", "hyperparameter file (yaml, toml or json)")
	f.StringSliceVar(&opts.set, "set", nil, "hyperparameter override key=value, repeatable")
	f.BoolVar(&opts.images, "images", true, "log sample images at the end of each epoch")
	f.Uint64Var(&opts.seed, "seed", 1, "random seed")
	return cmd
}

func runDemo(cmd *cobra.Command, appInstance App, opts demoOptions) error {
	if opts.epochs <= 0 || opts.steps <= 0 {
		return fmt.Errorf("epochs and steps must be positive")
	}
	hp := map[string]record.Param{
		"epochs": record.IntParam(int64(opts.epochs)),
		"steps":  record.IntParam(int64(opts.steps)),
		"lr":     record.FloatParam(0.01),
	}
	if opts.hparamsFile != "" {
		fromFile, err := hparams.LoadFile(opts.hparamsFile)
		if err != nil {
			return err
		}
		hp = hparams.Merge(hp, fromFile)
	}
	overrides, err := hparams.ParsePairs(opts.set)
	if err != nil {
		return err
	}
	hp = hparams.Merge(hp, overrides)

	ctx := cmd.Context()
	s, err := appInstance.NewSession(ctx, opts.name, opts.description, hp)
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger().With(zap.String("session", opts.name))

	lr := 0.01
	if f, ok := hp["lr"].Float(); ok && f > 0 {
		lr = f
	}
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
	step := 0
	for epoch := range opts.epochs {
		b := appInstance.NewBar(fmt.Sprintf("epoch %d", epoch), s, bar.Config{Writer: cmd.ErrOrStderr()})
		for range b.Range(opts.steps) {
			progress := float64(step) * lr
			values := map[string]float64{
				"loss":     math.Exp(-progress) + 0.05*rng.Float64(),
				"accuracy": 1 - math.Exp(-progress) - 0.05*rng.Float64(),
			}
			if err := s.Scalar(float64(step), values); err != nil {
				return err
			}
			step++
		}
		if opts.images {
			if err := s.Image(ctx, float64(step), sampleImages(rng, 4, 8), "samples"); err != nil {
				logger.Warn("failed to log sample images", zap.Error(err))
			}
		}
	}

	if err := s.Close(ctx); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	logger.Info("demo run recorded", zap.Int("timesteps", s.Len()), zap.String("run_id", s.RunID()))
	fmt.Fprintf(cmd.OutOrStdout(), "recorded %s (%d steps)\n", opts.name, s.Len())
	return nil
}

// sampleImages returns n random single-channel size x size images in NCHW.
func sampleImages(rng *rand.Rand, n, size int) imaging.Tensor {
	data := make([]float64, n*size*size)
	for i := range data {
		data[i] = rng.Float64()
	}
	return imaging.Tensor{Data: data, Shape: []int{n, 1, size, size}, Layout: "NCHW"}
}
