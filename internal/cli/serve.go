package cli

import (
	"github.com/spf13/cobra"

	"github.com/mnemod/mnemod/internal/mcpserver"
	"github.com/mnemod/mnemod/internal/sanitize"
	"github.com/mnemod/mnemod/pkg/app"
)

func serveCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the memory daemon with scheduler and gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return app.Run(app.RunParams{
				ConfigPath: path,
				Version:    version,
			})
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory tools over the Model Context Protocol on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			srv := mcpserver.New(st, sanitize.NewSecrets(), nil)
			return srv.ServeStdio()
		},
	}
}
