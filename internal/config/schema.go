// Package config handles YAML configuration loading, environment variable
// expansion, defaulting, and structural validation for seriesrelay.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Telegram TelegramConfig `yaml:"telegram"`
	Channels ChannelsConfig `yaml:"channels"`
	Control  ControlConfig  `yaml:"control"`
	Scan     ScanConfig     `yaml:"scan"`
	Delays   DelaysConfig   `yaml:"delays"`
	Keywords KeywordsConfig `yaml:"keywords"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Storage  StorageConfig  `yaml:"storage"`
}

// TelegramConfig holds MTProto credentials and session settings.
type TelegramConfig struct {
	// APIID and APIHash identify the application at my.telegram.org.
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`

	// Sessions lists session files in rotation order. The first entry is
	// used at startup; later entries are switched to after long flood waits.
	Sessions []string `yaml:"sessions"`
}

// ChannelsConfig names the source index channel and the forward destination.
// Both accept @usernames, t.me links, or invite links.
type ChannelsConfig struct {
	Index       string `yaml:"index"`
	Destination string `yaml:"destination"`
}

// ControlConfig configures the Bot API control bot.
type ControlConfig struct {
	// Token is the Bot API token. Empty disables the control bot.
	Token string `yaml:"token"`

	// Admins lists Telegram user IDs allowed to issue commands.
	Admins []int64 `yaml:"admins"`

	// PollTimeout is the long-poll timeout for getUpdates.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// APIBaseURL overrides the Bot API endpoint. Empty uses api.telegram.org.
	APIBaseURL string `yaml:"api_base_url"`
}

// ScanConfig tunes the index scan and file collection behavior.
type ScanConfig struct {
	// HistoryLimit caps how many index messages are fetched per scan.
	HistoryLimit int `yaml:"history_limit"`

	// IdleTimeout is how long the collector waits with no new bot
	// messages before concluding a batch is complete.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxPages bounds how many times "Next" is clicked per season.
	MaxPages int `yaml:"max_pages"`

	// MaxSeries caps how many new series a single scan processes.
	// Zero means no cap.
	MaxSeries int `yaml:"max_series"`

	// FloodThreshold is the flood wait duration above which the run
	// aborts and rotates to the next session instead of sleeping.
	FloodThreshold time.Duration `yaml:"flood_threshold"`

	// Schedule is an optional cron expression for recurring scans.
	Schedule string `yaml:"schedule"`
}

// DelaysConfig spaces out API calls to stay under rate limits.
type DelaysConfig struct {
	Button   time.Duration `yaml:"button"`
	Season   time.Duration `yaml:"season"`
	Forward  time.Duration `yaml:"forward"`
	Next     time.Duration `yaml:"next"`
	Join     time.Duration `yaml:"join"`
	BotStart time.Duration `yaml:"bot_start"`
}

// KeywordsConfig holds the case-insensitive substrings used to recognize
// inline buttons by their labels.
type KeywordsConfig struct {
	Download []string `yaml:"download"`
	SendAll  []string `yaml:"send_all"`
	Next     []string `yaml:"next"`
}

// GatewayConfig configures the local HTTP gateway.
type GatewayConfig struct {
	// Listen is the bind address. Empty disables the gateway.
	Listen string `yaml:"listen"`

	// AuthToken, when set, is required as a bearer token on /status.
	AuthToken string `yaml:"auth_token"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// applyDefaults fills zero-valued fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Control.PollTimeout == 0 {
		cfg.Control.PollTimeout = 30 * time.Second
	}
	if cfg.Scan.HistoryLimit == 0 {
		cfg.Scan.HistoryLimit = 100
	}
	if cfg.Scan.IdleTimeout == 0 {
		cfg.Scan.IdleTimeout = 40 * time.Second
	}
	if cfg.Scan.MaxPages == 0 {
		cfg.Scan.MaxPages = 10
	}
	if cfg.Scan.FloodThreshold == 0 {
		cfg.Scan.FloodThreshold = time.Hour
	}
	if cfg.Delays.Button == 0 {
		cfg.Delays.Button = 2 * time.Second
	}
	if cfg.Delays.Season == 0 {
		cfg.Delays.Season = 3 * time.Second
	}
	if cfg.Delays.Forward == 0 {
		cfg.Delays.Forward = time.Second
	}
	if cfg.Delays.Next == 0 {
		cfg.Delays.Next = 2 * time.Second
	}
	if cfg.Delays.Join == 0 {
		cfg.Delays.Join = 2 * time.Second
	}
	if cfg.Delays.BotStart == 0 {
		cfg.Delays.BotStart = 3 * time.Second
	}
	if len(cfg.Keywords.Download) == 0 {
		cfg.Keywords.Download = []string{"download", "⬇️", "get", "links"}
	}
	if len(cfg.Keywords.SendAll) == 0 {
		cfg.Keywords.SendAll = []string{"send all", "send_all", "all files", "get all", "batch"}
	}
	if len(cfg.Keywords.Next) == 0 {
		cfg.Keywords.Next = []string{"next", "→", ">>", "more", "▶", "➡"}
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "seriesrelay.db"
	}
}
