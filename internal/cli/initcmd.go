package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mnemod/mnemod/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				path = filepath.Join(home, ".config", "mnemod", "mnemod.yaml")
			}

			cfg := config.Default()
			dbPath := cfg.Store.Path
			logLevel := "info"
			gatewayOn := false
			gatewayToken := ""

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Database path").
						Description("SQLite file holding the memory store").
						Value(&dbPath),
					huh.NewSelect[string]().
						Title("Log level").
						Options(
							huh.NewOption("debug", "debug"),
							huh.NewOption("info", "info"),
							huh.NewOption("warn", "warn"),
							huh.NewOption("error", "error"),
						).
						Value(&logLevel),
					huh.NewConfirm().
						Title("Enable the admin gateway?").
						Value(&gatewayOn),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Gateway bearer token").
						Description("Protects the /api and /ws routes").
						Value(&gatewayToken),
				).WithHideFunc(func() bool { return !gatewayOn }),
			)
			if err := form.Run(); err != nil {
				return err
			}

			cfg.Store.Path = dbPath
			cfg.Log.Level = logLevel
			cfg.Gateway.Enabled = gatewayOn
			cfg.Gateway.Token = gatewayToken

			if err := config.Validate(cfg); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}
