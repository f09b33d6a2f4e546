package main

import (
	"github.com/spf13/cobra"

	"github.com/iliaanaa/genekor/internal/app"
)

func newServeCmd(e *env) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				e.cfg().Server.Port = port
			}
			if err := e.manager.Validate(); err != nil {
				return err
			}
			return app.Serve(cmd.Context(), e.manager, e.logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: server.port)")
	return cmd
}
