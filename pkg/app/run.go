package app

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mnemod/mnemod/internal/config"
)

// RunParams configures the serve loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically; if nothing is
	// found, built-in defaults apply.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string
}

// Run loads configuration, starts the subsystem, and blocks until a
// shutdown signal is received.
func Run(params RunParams) error {
	cfg, err := loadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	a, err := New(cfg)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		a.closeQuiet()
		return err
	}
	a.logger.Info("mnemod started", "version", params.Version, "db", cfg.Store.Path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	a.logger.Info("shutdown signal received", "signal", sig.String())
	a.closeQuiet()
	a.logger.Info("shutdown complete")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		resolved, ok := ResolveConfigPath()
		if !ok {
			return config.Default(), nil
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/mnemod/mnemod.yaml →
// ~/.config/mnemod/mnemod.yaml → ./mnemod.yaml
func ResolveConfigPath() (string, bool) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "mnemod", "mnemod.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "mnemod", "mnemod.yaml"))
	}

	candidates = append(candidates, "mnemod.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	return "", false
}

// LoadConfig resolves and loads the effective configuration the same way
// Run does, for CLI commands that need a configured App or store path.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
