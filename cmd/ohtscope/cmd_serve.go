package main

import (
	"github.com/spf13/cobra"

	"ohtscope/internal/mcp"
	"ohtscope/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis tools over MCP on stdio",
	Long: `Serve exposes log analysis and rule-set feedback as MCP tools over
stdin/stdout for agent clients. The process blocks until the client
disconnects or the context is cancelled.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := store.Open(rootFlags.dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		srv, err := mcp.NewServer(st, version)
		if err != nil {
			return err
		}
		return srv.Run(cmd.Context())
	},
}
