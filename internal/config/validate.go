package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, the Telegram credentials, the channel
// references, and that any optional surfaces are coherently configured.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Telegram.APIID == 0 {
		errs = append(errs, errors.New("config: telegram.api_id is required"))
	}
	if cfg.Telegram.APIHash == "" {
		errs = append(errs, errors.New("config: telegram.api_hash is required"))
	}
	if len(cfg.Telegram.Sessions) == 0 {
		errs = append(errs, errors.New("config: telegram.sessions must list at least one session file"))
	}
	for i, s := range cfg.Telegram.Sessions {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("config: telegram.sessions[%d]: path is empty", i))
		}
	}

	if cfg.Channels.Index == "" {
		errs = append(errs, errors.New("config: channels.index is required"))
	}
	if cfg.Channels.Destination == "" {
		errs = append(errs, errors.New("config: channels.destination is required"))
	}

	if cfg.Control.Token != "" && len(cfg.Control.Admins) == 0 {
		errs = append(errs, errors.New("config: control.token is set but control.admins is empty"))
	}

	for field, d := range map[string]int64{
		"scan.idle_timeout":    int64(cfg.Scan.IdleTimeout),
		"scan.flood_threshold": int64(cfg.Scan.FloodThreshold),
		"delays.button":        int64(cfg.Delays.Button),
		"delays.season":        int64(cfg.Delays.Season),
		"delays.forward":       int64(cfg.Delays.Forward),
		"delays.next":          int64(cfg.Delays.Next),
		"delays.join":          int64(cfg.Delays.Join),
		"delays.bot_start":     int64(cfg.Delays.BotStart),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("config: %s must not be negative", field))
		}
	}

	if cfg.Scan.HistoryLimit < 0 {
		errs = append(errs, errors.New("config: scan.history_limit must not be negative"))
	}
	if cfg.Scan.MaxPages < 0 {
		errs = append(errs, errors.New("config: scan.max_pages must not be negative"))
	}
	if cfg.Scan.MaxSeries < 0 {
		errs = append(errs, errors.New("config: scan.max_series must not be negative"))
	}

	if cfg.Scan.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.Scan.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: scan.schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}
