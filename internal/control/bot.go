package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"seriesrelay/internal/relay"
	"seriesrelay/pkg/message"
)

// progressEditInterval rate-limits progress message edits; the Bot API
// rejects rapid edit bursts.
const progressEditInterval = 3 * time.Second

// Engine is the slice of the relay engine the control bot drives.
type Engine interface {
	Run(ctx context.Context) error
	ScanLink(ctx context.Context, link string) error
	Stop()
	Status() relay.Status
}

// Joiner joins channels on behalf of the user account, backing /join.
type Joiner interface {
	Join(ctx context.Context, ref message.Ref) (message.Peer, error)
}

// Bot accepts admin commands over the Bot API and mirrors relay progress
// into the chats that started a run.
type Bot struct {
	client *Client
	engine Engine
	joiner Joiner
	admins map[int64]bool
	log    *slog.Logger
	poller *Poller

	runCtx context.Context

	mu       sync.Mutex
	progress map[int64]int // chat -> progress message ID
	lastEdit time.Time
}

// NewBot wires the control bot. admins lists the only user IDs whose
// commands are honored; everyone else is silently ignored.
func NewBot(client *Client, engine Engine, joiner Joiner, admins []int64, pollTimeout time.Duration, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	allowed := make(map[int64]bool, len(admins))
	for _, id := range admins {
		allowed[id] = true
	}
	b := &Bot{
		client:   client,
		engine:   engine,
		joiner:   joiner,
		admins:   allowed,
		log:      log,
		progress: make(map[int64]int),
	}
	b.poller = NewPoller(client, b.handleUpdate, log, pollTimeout)
	return b
}

// Start verifies the token, drops any webhook, and begins polling.
// runCtx is the context under which /scan launches engine runs.
func (b *Bot) Start(runCtx context.Context) error {
	b.runCtx = runCtx

	me, err := b.client.GetMe(runCtx)
	if err != nil {
		return fmt.Errorf("control: verifying bot token: %w", err)
	}
	if err := b.client.DeleteWebhook(runCtx); err != nil {
		b.log.Warn("deleting webhook", "error", err)
	}

	b.log.Info("control bot started", "username", me.Username)
	b.poller.Start()
	return nil
}

// Stop halts polling and waits for the loop to exit.
func (b *Bot) Stop() {
	b.poller.Stop()
}

func (b *Bot) handleUpdate(u *Update) {
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}
	if !b.admins[msg.From.ID] {
		b.log.Debug("command from non-admin ignored", "user_id", msg.From.ID)
		return
	}

	cmd, arg := splitCommand(msg.Text)
	switch cmd {
	case "/start", "/help":
		b.reply(msg.Chat.ID, helpText)
	case "/scan":
		b.cmdScan(msg.Chat.ID, arg)
	case "/stop":
		b.engine.Stop()
		b.reply(msg.Chat.ID, "Stopping after the current operation.")
	case "/status":
		b.reply(msg.Chat.ID, formatStatus(b.engine.Status()))
	case "/join":
		b.cmdJoin(msg.Chat.ID, arg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

const helpText = `Commands:
/scan — scan the index channel for new series
/scan <link> — process a single series channel
/stop — stop the current run
/status — show progress
/join <link> — join a channel with the user account`

func (b *Bot) cmdScan(chatID int64, arg string) {
	run := func(ctx context.Context) error { return b.engine.Run(ctx) }
	what := "index scan"
	if arg != "" {
		run = func(ctx context.Context) error { return b.engine.ScanLink(ctx, arg) }
		what = "scan of " + arg
	}

	b.mu.Lock()
	b.progress[chatID] = 0
	b.mu.Unlock()

	go func() {
		err := run(b.runCtx)
		switch {
		case err == nil:
			b.reply(chatID, "Done: "+what+"\n\n"+formatStatus(b.engine.Status()))
		case errors.Is(err, relay.ErrBusy):
			b.reply(chatID, "A run is already in progress. /status shows it, /stop aborts it.")
		case errors.Is(err, relay.ErrStopped):
			b.reply(chatID, "Stopped: "+what)
		default:
			b.reply(chatID, "Failed: "+err.Error())
		}

		b.mu.Lock()
		delete(b.progress, chatID)
		b.mu.Unlock()
	}()

	b.reply(chatID, "Started "+what+".")
}

func (b *Bot) cmdJoin(chatID int64, arg string) {
	if arg == "" {
		b.reply(chatID, "Usage: /join <link or @username>")
		return
	}
	ref, err := message.ParseRef(arg)
	if err != nil {
		b.reply(chatID, "That does not look like a Telegram link: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(b.runCtx, time.Minute)
	defer cancel()

	peer, err := b.joiner.Join(ctx, ref)
	if err != nil {
		b.reply(chatID, "Join failed: "+err.Error())
		return
	}
	b.reply(chatID, "Joined "+peer.Name())
}

// Notify mirrors status changes into every chat with an active /scan. It
// edits a single progress message per chat, creating it on first call.
func (b *Bot) Notify(s relay.Status) {
	b.mu.Lock()
	if !s.Running || time.Since(b.lastEdit) < progressEditInterval {
		b.mu.Unlock()
		return
	}
	b.lastEdit = time.Now()
	chats := make(map[int64]int, len(b.progress))
	for chat, msgID := range b.progress {
		chats[chat] = msgID
	}
	b.mu.Unlock()

	text := formatStatus(s)
	for chat, msgID := range chats {
		if msgID == 0 {
			sent, err := b.client.SendMessage(context.Background(), SendMessageRequest{
				ChatID: chat,
				Text:   text,
			})
			if err != nil {
				b.log.Warn("sending progress message", "chat_id", chat, "error", err)
				continue
			}
			b.mu.Lock()
			if _, ok := b.progress[chat]; ok {
				b.progress[chat] = sent.MessageID
			}
			b.mu.Unlock()
			continue
		}

		if _, err := b.client.EditMessageText(context.Background(), EditMessageTextRequest{
			ChatID:    chat,
			MessageID: msgID,
			Text:      text,
		}); err != nil {
			b.log.Debug("editing progress message", "chat_id", chat, "error", err)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	_, err := b.client.SendMessage(context.Background(), SendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		b.log.Error("sending reply", "chat_id", chatID, "error", err)
	}
}

// splitCommand separates "/cmd@bot arg rest" into "/cmd" and "arg rest".
func splitCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	cmd, arg, _ = strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(arg)
}

func formatStatus(s relay.Status) string {
	var sb strings.Builder
	if s.Running {
		sb.WriteString("▶ Running (" + string(s.Phase) + ")\n")
		if s.CurrentSeries != "" {
			sb.WriteString("Series: " + s.CurrentSeries + "\n")
		}
		if s.CurrentSeason != "" {
			sb.WriteString("Season: " + s.CurrentSeason + "\n")
		}
		if !s.StartedAt.IsZero() {
			sb.WriteString("Elapsed: " + time.Since(s.StartedAt).Round(time.Second).String() + "\n")
		}
	} else {
		sb.WriteString("■ Idle\n")
	}
	fmt.Fprintf(&sb, "Series done: %d\nSeasons done: %d\nFiles relayed: %d\nSkipped: %d",
		s.SeriesDone, s.SeasonsDone, s.FilesRelayed, s.Skipped)
	if s.Session != "" {
		sb.WriteString("\nSession: " + s.Session)
	}
	if s.LastError != "" {
		sb.WriteString("\nLast error: " + s.LastError)
	}
	return sb.String()
}
