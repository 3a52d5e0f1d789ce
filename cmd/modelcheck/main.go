package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelcheck/adapters/rng"
	"modelcheck/adapters/tabular"
	"modelcheck/app"
	"modelcheck/internal"
	"modelcheck/internal/config"
	"modelcheck/internal/support"
)

// env is the wiring shared by every command
type env struct {
	config    *config.Config
	logger    *internal.Logger
	reader    *tabular.Reader
	checks    *app.ModelCheckService
	estimator *support.Estimator
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	checks := app.NewModelCheckService(cfg.Model, rng.New(), logger)
	return &env{
		config:    cfg,
		logger:    logger,
		reader:    tabular.NewReader(logger),
		checks:    checks,
		estimator: support.NewEstimator(checks.Fitter(), checks.Preprocessor()),
	}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "modelcheck",
		Short:         "Visual model checks and causal support for regression models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newCheckCmd(),
		newSupportCmd(),
		newCalibrateCmd(),
		newServeCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
