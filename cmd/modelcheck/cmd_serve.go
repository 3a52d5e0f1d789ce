package main

import (
	"github.com/spf13/cobra"

	"modelcheck/adapters/httpapi"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve model checks and causal support over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if port != "" {
				e.config.Server.Port = port
			}
			srv := httpapi.NewServer(e.config.Server, e.checks, e.estimator, e.logger)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default from PORT)")
	return cmd
}
