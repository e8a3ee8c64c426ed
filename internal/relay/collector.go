package relay

import (
	"context"
	"time"

	"seriesrelay/pkg/message"
)

// staleGrace is how far before the collection start a message may be dated
// and still count as part of this batch. Bots sometimes resend queued
// messages with slightly older timestamps.
const staleGrace = time.Minute

// stopPollInterval is how often a quiet wait loop checks for a stop request.
const stopPollInterval = 250 * time.Millisecond

// collected is one media message received from a file bot.
type collected struct {
	bot   message.Peer
	msgID int
	media message.Media
}

// inbound pairs a private message with its sender.
type inbound struct {
	from message.Peer
	msg  message.Message
}

// collect deep-links into the bot via the start parameter and gathers every
// media message it sends until the idle timeout elapses or a stop is
// requested. "Send All" buttons are pressed when offered, and "Next"
// pagination is followed up to cfg.MaxPages times. Edited messages are
// reprocessed, duplicates are not.
func (e *Engine) collect(ctx context.Context, bot message.Peer, param string) ([]collected, error) {
	fromBot := func(from message.Peer) bool { return from.ID == bot.ID }
	return e.gather(ctx, bot.Name(), fromBot, func(ctx context.Context) ([]inbound, error) {
		if err := e.tg.StartBot(ctx, bot, param); err != nil {
			return nil, err
		}
		if err := e.sleep(ctx, e.cfg.BotStartDelay); err != nil {
			return nil, err
		}

		// Seed with messages that arrived before the update handler was
		// live. Backlog is returned newest first; process oldest first so
		// "Send All" is pressed on the prompt, not a stale page.
		backlog, err := e.tg.History(ctx, bot, e.cfg.HistoryLimit, 0)
		if err != nil {
			e.log.Warn("reading bot backlog", "bot", bot.Name(), "error", err)
		}
		seed := make([]inbound, 0, len(backlog))
		for i := len(backlog) - 1; i >= 0; i-- {
			seed = append(seed, inbound{from: bot, msg: backlog[i]})
		}
		return seed, nil
	})
}

// collectDirect gathers media DMed by any bot. Used after a button click
// that makes a file bot message the account straight away instead of
// revealing deep links, so the sender is not known up front.
func (e *Engine) collectDirect(ctx context.Context) ([]collected, error) {
	fromAnyBot := func(from message.Peer) bool {
		return from.Bot || isBotUsername(from.Username)
	}
	return e.gather(ctx, "any bot", fromAnyBot, nil)
}

// gather subscribes to private messages accepted by the filter, optionally
// seeds the loop via seed, and collects media until the idle timeout, a
// stop request, or ctx cancellation ends the wait.
func (e *Engine) gather(ctx context.Context, source string, accept func(message.Peer) bool, seed func(ctx context.Context) ([]inbound, error)) ([]collected, error) {
	incoming := make(chan inbound, 128)
	e.tg.OnPrivateMessage(func(from message.Peer, msg message.Message) {
		if !accept(from) {
			return
		}
		select {
		case incoming <- inbound{from: from, msg: msg}:
		default:
			e.log.Warn("collector queue full, dropping message", "from", from.Name(), "msg_id", msg.ID)
		}
	})
	defer e.tg.OnPrivateMessage(nil)

	start := e.now()
	var backlog []inbound
	if seed != nil {
		var err error
		backlog, err = seed(ctx)
		if err != nil {
			return nil, err
		}
	}

	var (
		files   []collected
		seen    = make(map[int]time.Time)
		pages   = 0
		sentAll = false
		idle    = time.NewTimer(e.cfg.IdleTimeout)
	)
	defer idle.Stop()

	handle := func(in inbound) error {
		msg := in.msg
		if msg.Outgoing {
			return nil
		}
		// Skip leftovers from previous runs unless edited since.
		if msg.Stamp().Before(start.Add(-staleGrace)) {
			return nil
		}
		if last, ok := seen[msg.ID]; ok && !msg.Stamp().After(last) {
			return nil
		}
		seen[msg.ID] = msg.Stamp()

		// A message can carry media and pagination controls at once, so
		// the keyboard is inspected either way.
		if msg.HasMedia() {
			files = append(files, collected{bot: in.from, msgID: msg.ID, media: *msg.Media})
		}

		if b, ok := findButton(msg, e.cfg.SendAllKeywords); ok && !b.IsURL() && !sentAll {
			sentAll = true
			if err := e.sleep(ctx, e.cfg.ButtonDelay); err != nil {
				return err
			}
			return e.tg.Click(ctx, in.from, msg.ID, b.Data)
		}

		if b, ok := findButton(msg, e.cfg.NextKeywords); ok && !b.IsURL() && pages < e.cfg.MaxPages {
			pages++
			if err := e.sleep(ctx, e.cfg.NextDelay); err != nil {
				return err
			}
			return e.tg.Click(ctx, in.from, msg.ID, b.Data)
		}
		return nil
	}

	for _, in := range backlog {
		if err := handle(in); err != nil {
			return files, err
		}
	}

	stopPoll := time.NewTicker(stopPollInterval)
	defer stopPoll.Stop()

	for {
		select {
		case <-ctx.Done():
			return files, ctx.Err()
		case <-stopPoll.C:
			if e.stopped.Load() {
				e.log.Debug("collector stopped by request", "source", source, "files", len(files))
				return files, ErrStopped
			}
		case in := <-incoming:
			if e.stopped.Load() {
				return files, ErrStopped
			}
			before := len(files)
			if err := handle(in); err != nil {
				return files, err
			}
			if len(files) > before || !in.msg.Outgoing {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(e.cfg.IdleTimeout)
			}
		case <-idle.C:
			e.log.Debug("collector idle timeout", "source", source, "files", len(files), "pages", pages)
			return files, nil
		}
	}
}
