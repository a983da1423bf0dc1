// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/validation-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API over HTTP",
	Long: `Serve exposes sessions as a JSON API:

  POST   /api/sessions                   create a session
  GET    /api/sessions                   list sessions
  GET    /api/sessions/{id}              show a session and its allowed actions
  DELETE /api/sessions/{id}              delete a session
  POST   /api/sessions/{id}/actions      run {"action": "...", "value": "..."}
  GET    /api/sessions/{id}/history      list the actions run so far
  GET    /api/sessions/{id}/report       ?format=pdf|markdown
  GET    /api/sessions/{id}/export       ?format=json|yaml
  GET    /metrics                        Prometheus metrics
  GET    /healthz                        liveness

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	addr, _ := cmd.Flags().GetString("addr")
	return server.New(e.mgr, logger).ListenAndServe(cmd.Context(), addr)
}
