package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{
		Version: "1",
		Telegram: TelegramConfig{
			APIID:    12345,
			APIHash:  "abcdef",
			Sessions: []string{"primary.session"},
		},
		Channels: ChannelsConfig{
			Index:       "@series_index",
			Destination: "@my_archive",
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Version = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Version = "99"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should mention unsupported: %v", err)
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.APIID = 0
	cfg.Telegram.APIHash = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "api_id") || !strings.Contains(err.Error(), "api_hash") {
		t.Errorf("error should mention both credentials: %v", err)
	}
}

func TestValidate_NoSessions(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Sessions = nil
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing sessions")
	}
	if !strings.Contains(err.Error(), "sessions") {
		t.Errorf("error should mention sessions: %v", err)
	}
}

func TestValidate_MissingChannels(t *testing.T) {
	cfg := validConfig()
	cfg.Channels.Index = ""
	cfg.Channels.Destination = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing channels")
	}
	if !strings.Contains(err.Error(), "channels.index") || !strings.Contains(err.Error(), "channels.destination") {
		t.Errorf("error should mention both channels: %v", err)
	}
}

func TestValidate_ControlWithoutAdmins(t *testing.T) {
	cfg := validConfig()
	cfg.Control.Token = "123:abc"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for control token without admins")
	}
	if !strings.Contains(err.Error(), "admins") {
		t.Errorf("error should mention admins: %v", err)
	}
}

func TestValidate_Schedule(t *testing.T) {
	cfg := validConfig()
	cfg.Scan.Schedule = "0 */6 * * *"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error for valid schedule: %v", err)
	}

	cfg.Scan.Schedule = "not a cron expression"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if !strings.Contains(err.Error(), "scan.schedule") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestValidate_NegativeDelay(t *testing.T) {
	cfg := validConfig()
	cfg.Delays.Button = -time.Second
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative delay")
	}
	if !strings.Contains(err.Error(), "delays.button") {
		t.Errorf("error should name the field: %v", err)
	}
}
