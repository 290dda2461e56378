// Package cli implements the mnemod command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemod/mnemod/internal/config"
	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/app"
)

// Root builds the top-level command. version is injected at build time.
func Root(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "mnemod",
		Short:         "Durable, self-curating memory for coding agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	root.AddCommand(
		versionCmd(version),
		initCmd(),
		serveCmd(version),
		mcpCmd(),
		configCmd(),
		memoryCmd(),
		factCmd(),
	)
	root.AddCommand(maintenanceCmds()...)
	return root
}

func versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("mnemod %s\n", version)
		},
	}
}

// loadConfig resolves the effective configuration for a command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return app.LoadConfig(path)
}

// openStore opens the store directly for one-shot CLI commands, without
// the full app wiring.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(store.Config{
		Path:         cfg.Store.Path,
		BusyTimeout:  cfg.Store.BusyTimeout,
		MaxMemories:  cfg.Store.MaxMemories,
		MinScore:     cfg.Search.MinScore,
		HalfLifeDays: cfg.Search.HalfLifeDays,
	})
}
