// Package app provides the shared entry point for the seriesrelay binary.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"seriesrelay/internal/config"
	"seriesrelay/internal/control"
	"seriesrelay/internal/gateway"
	"seriesrelay/internal/relay"
	"seriesrelay/internal/sched"
	"seriesrelay/internal/secrets"
	"seriesrelay/internal/sessions"
	"seriesrelay/internal/store"
	"seriesrelay/internal/userbot"
	"seriesrelay/pkg/message"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// ScanOnStart launches a full index scan immediately after connection
	// instead of waiting for a command or schedule.
	ScanOnStart bool

	// ScanOnce runs a single full index scan and exits.
	ScanOnce bool

	// ScanLink, when non-empty, processes that single series channel and
	// exits. Implies a non-resident run.
	ScanLink string
}

// Run loads configuration, connects the user account, and blocks until a
// shutdown signal is received. The control bot, gateway, and scheduler are
// each enabled only when configured.
func Run(params RunParams) error {
	// Populate the environment from .env before config expansion, so
	// ${VAR} references in YAML resolve. A missing file is fine.
	_ = godotenv.Load()

	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Keep credentials from the config out of log output.
	redactor := secrets.NewRedactor()
	redactor.AddLiteral(cfg.Telegram.APIHash)
	redactor.AddLiteral(cfg.Control.Token)
	redactor.AddLiteral(cfg.Gateway.AuthToken)

	innerHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(secrets.NewRedactingHandler(innerHandler, redactor))
	logger.Info("starting", "version", params.Version, "config", cfgPath)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	pool, err := sessions.NewPool(cfg.Telegram.Sessions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := userbot.New(userbot.Options{
		APIID:          cfg.Telegram.APIID,
		APIHash:        cfg.Telegram.APIHash,
		FloodThreshold: cfg.Scan.FloodThreshold,
		Logger:         logger,
	})
	if err := client.Connect(ctx, pool.Current()); err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	logger.Info("connected", "session", pool.Current(), "account", client.Self().Name())

	// Fresh sessions have an empty peer cache until dialogs are loaded.
	if err := client.RefreshDialogs(ctx); err != nil {
		logger.Warn("dialogs refresh failed", "error", err)
	}

	engine := relay.New(client, st, engineConfig(cfg), logger)
	engine.SetSession(pool.Current())
	engine.SetRotator(func(ctx context.Context) error {
		next, err := pool.Advance()
		if err != nil {
			return err
		}
		if err := client.Switch(ctx, next); err != nil {
			return err
		}
		engine.SetSession(next)
		logger.Info("rotated session", "session", next, "sessions_left", pool.Remaining())
		return nil
	})

	// Check the destination early so a typo surfaces at startup rather
	// than after the first series is collected. Non-fatal: the channel
	// may only become resolvable after dialogs warm up.
	if ref, err := message.ParseRef(cfg.Channels.Destination); err != nil {
		logger.Warn("destination link did not parse", "destination", cfg.Channels.Destination, "error", err)
	} else if _, err := client.Resolve(ctx, ref); err != nil {
		logger.Warn("destination not resolvable yet", "destination", cfg.Channels.Destination, "error", err)
	}

	// One-shot modes: process and exit without the resident services.
	if params.ScanLink != "" {
		return engine.ScanLink(ctx, params.ScanLink)
	}
	if params.ScanOnce {
		return engine.Run(ctx)
	}

	var gw *gateway.Gateway
	if cfg.Gateway.Listen != "" {
		gw = gateway.New(cfg.Gateway.Listen, cfg.Gateway.AuthToken, engine, logger)
		if err := gw.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = gw.Stop(context.Background()) }()
	}

	var bot *control.Bot
	if cfg.Control.Token != "" {
		botClient := control.NewClient(cfg.Control.Token, cfg.Control.APIBaseURL)
		bot = control.NewBot(botClient, engine, client, cfg.Control.Admins, cfg.Control.PollTimeout, logger)
		if err := bot.Start(ctx); err != nil {
			return err
		}
		defer bot.Stop()
	}

	engine.SetNotifier(func(s relay.Status) {
		if bot != nil {
			bot.Notify(s)
		}
		if gw != nil {
			gw.Notify(s)
		}
	})

	if cfg.Scan.Schedule != "" {
		scheduler := sched.NewScheduler(logger)
		if err := scheduler.RegisterJob(&sched.ScanJob{
			Engine:       engine,
			Logger:       logger,
			ScheduleExpr: cfg.Scan.Schedule,
		}); err != nil {
			return err
		}
		if err := scheduler.RegisterJob(&sched.StatsJob{
			Store:  st,
			Logger: logger,
		}); err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer func() { _ = scheduler.Stop(context.Background()) }()
	}

	if params.ScanOnStart {
		go func() {
			if err := engine.Run(ctx); err != nil {
				logger.Error("startup scan failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	engine.Stop()
	return nil
}

// engineConfig maps the YAML configuration onto the engine's flat config.
func engineConfig(cfg *config.Config) relay.Config {
	return relay.Config{
		Index:       cfg.Channels.Index,
		Destination: cfg.Channels.Destination,

		HistoryLimit: cfg.Scan.HistoryLimit,
		IdleTimeout:  cfg.Scan.IdleTimeout,
		MaxPages:     cfg.Scan.MaxPages,
		MaxSeries:    cfg.Scan.MaxSeries,

		ButtonDelay:   cfg.Delays.Button,
		SeasonDelay:   cfg.Delays.Season,
		ForwardDelay:  cfg.Delays.Forward,
		NextDelay:     cfg.Delays.Next,
		JoinDelay:     cfg.Delays.Join,
		BotStartDelay: cfg.Delays.BotStart,

		DownloadKeywords: cfg.Keywords.Download,
		SendAllKeywords:  cfg.Keywords.SendAll,
		NextKeywords:     cfg.Keywords.Next,
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/seriesrelay/seriesrelay.yaml →
// ~/.config/seriesrelay/seriesrelay.yaml → ./seriesrelay.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "seriesrelay", "seriesrelay.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "seriesrelay", "seriesrelay.yaml"))
	}

	candidates = append(candidates, "seriesrelay.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
