package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"modelcheck/adapters/rng"
	"modelcheck/app"
)

func newCalibrateCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "calibrate [batch.yaml]",
		Short: "Score a YAML batch of causal-support stimuli concurrently",
		Long: `Score every job of a calibration batch and print the results as YAML.

Example: modelcheck calibrate stimuli.yaml --concurrency 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			cfg, err := app.ParseCalibration(f)
			if err != nil {
				return err
			}

			limit := e.config.Batch.Concurrency
			if concurrency > 0 {
				limit = concurrency
			}
			cal := app.NewStimulusCalibrator(e.estimator, e.reader, rng.New(), limit, e.logger)
			rep, err := cal.Run(cmd.Context(), cfg, filepath.Dir(args[0]))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(rep)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent jobs (default from MODELCHECK_CONCURRENCY)")
	return cmd
}
