package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field cron format used by the
// maintenance schedules.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the structural validity of a Config. It verifies the
// version field, range-checks the tunables, and parses the maintenance
// schedules. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("config: store.path is required"))
	}
	if cfg.Store.MaxMemories < 0 {
		errs = append(errs, errors.New("config: store.max_memories must not be negative"))
	}

	errs = append(errs, validateUnit(cfg.Capture.Threshold, "capture.threshold")...)
	errs = append(errs, validateUnit(cfg.Boundary.Threshold, "boundary.threshold")...)
	errs = append(errs, validateUnit(cfg.Search.MinScore, "search.min_score")...)
	errs = append(errs, validateUnit(cfg.Compression.Similarity, "compression.similarity")...)

	if cfg.Boundary.Window < 0 {
		errs = append(errs, errors.New("config: boundary.window must not be negative"))
	}
	if cfg.Injection.TokenBudget < 0 {
		errs = append(errs, errors.New("config: injection.token_budget must not be negative"))
	}
	if cfg.Injection.MaxRecords < 0 {
		errs = append(errs, errors.New("config: injection.max_records must not be negative"))
	}

	if cfg.Temporal.Immediate > 0 && cfg.Temporal.Task > 0 && cfg.Temporal.Task <= cfg.Temporal.Immediate {
		errs = append(errs, errors.New("config: temporal.task must exceed temporal.immediate"))
	}
	if cfg.Temporal.Task > 0 && cfg.Temporal.Session > 0 && cfg.Temporal.Session <= cfg.Temporal.Task {
		errs = append(errs, errors.New("config: temporal.session must exceed temporal.task"))
	}

	errs = append(errs, validateSchedule(cfg.Maintenance.PurgeSchedule, "maintenance.purge_schedule")...)
	errs = append(errs, validateSchedule(cfg.Maintenance.ConsolidationSchedule, "maintenance.consolidation_schedule")...)
	errs = append(errs, validateSchedule(cfg.Maintenance.CompressionSchedule, "maintenance.compression_schedule")...)

	if cfg.Gateway.Enabled {
		if cfg.Gateway.Token == "" {
			errs = append(errs, errors.New("config: gateway.token is required when the gateway is enabled"))
		}
	}

	return errors.Join(errs...)
}

// validateUnit checks an optional tunable stays inside (0,1]. Zero means
// "use the default" and passes.
func validateUnit(v float64, field string) []error {
	if v < 0 || v > 1 {
		return []error{fmt.Errorf("config: %s must be within [0,1], got %v", field, v)}
	}
	return nil
}

func validateSchedule(expr, field string) []error {
	if expr == "" {
		return nil
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return []error{fmt.Errorf("config: %s: invalid cron expression %q: %w", field, expr, err)}
	}
	return nil
}
