package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemod/mnemod/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (store: %s)\n", cfg.Store.Path)
			return nil
		},
	})
	return cmd
}
