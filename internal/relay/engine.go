package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"seriesrelay/internal/userbot"
	"seriesrelay/pkg/message"
)

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = errors.New("relay: a run is already in progress")

// ErrStopped is returned when a run is aborted by a stop request.
var ErrStopped = errors.New("relay: stopped by request")

// Engine orchestrates the full pipeline: index scan, channel joins, button
// clicks, bot collection, and forwarding. One run at a time.
type Engine struct {
	tg    Telegram
	store Store
	cfg   Config
	log   *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	// rotate switches to the next session after a long flood wait.
	rotate func(ctx context.Context) error

	runMu   sync.Mutex
	running atomic.Bool
	stopped atomic.Bool

	track tracker

	dest message.Peer
}

// New builds an engine. The store and telegram client must outlive it.
func New(tg Telegram, store Store, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		tg:    tg,
		store: store,
		cfg:   cfg,
		log:   log,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// SetNotifier registers a listener invoked on every status change.
func (e *Engine) SetNotifier(fn func(Status)) {
	e.track.mu.Lock()
	e.track.notify = fn
	e.track.mu.Unlock()
}

// SetRotator registers the session rotation hook used on long flood waits.
func (e *Engine) SetRotator(fn func(ctx context.Context) error) {
	e.rotate = fn
}

// SetSession records the active session path for status output.
func (e *Engine) SetSession(path string) {
	e.track.update(func(s *Status) { s.Session = path })
}

// Status returns a snapshot of the current progress.
func (e *Engine) Status() Status {
	s := e.track.snapshot()
	s.Running = e.running.Load()
	return s
}

// Stop requests a graceful abort of the current run. The run finishes the
// in-flight API call and returns ErrStopped.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Run scans the index channel and processes every series it links to.
func (e *Engine) Run(ctx context.Context) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	indexRef, err := message.ParseRef(e.cfg.Index)
	if err != nil {
		return fmt.Errorf("relay: index channel: %w", err)
	}

	e.track.update(func(s *Status) { s.Phase = PhaseScanning })
	index, err := e.tg.Join(ctx, indexRef)
	if err != nil {
		return e.fail(fmt.Errorf("relay: joining index: %w", err))
	}

	history, err := e.tg.History(ctx, index, e.cfg.HistoryLimit, 0)
	if err != nil {
		return e.fail(fmt.Errorf("relay: reading index: %w", err))
	}

	// Oldest first, so earlier postings are completed before newer ones.
	var refs []message.Ref
	seen := make(map[string]bool)
	for i := len(history) - 1; i >= 0; i-- {
		for _, ref := range channelRefs(history[i]) {
			if !seen[ref.Key()] {
				seen[ref.Key()] = true
				refs = append(refs, ref)
			}
		}
	}
	e.log.Info("index scanned", "channel", index.Name(), "messages", len(history), "series", len(refs))

	// Only series that actually get walked count against the budget, so
	// already-done entries at the front of the index don't starve new ones.
	processed := 0
	for _, ref := range refs {
		if e.cfg.MaxSeries > 0 && processed >= e.cfg.MaxSeries {
			e.log.Info("series budget reached", "processed", processed)
			break
		}
		if err := e.checkStop(ctx); err != nil {
			return err
		}
		walked, err := e.processSeriesRotating(ctx, ref)
		if err != nil {
			if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
				return err
			}
			e.log.Error("series failed", "series", ref.Key(), "error", err)
			e.track.update(func(s *Status) { s.LastError = err.Error() })
			continue
		}
		if walked {
			processed++
		}
	}
	return nil
}

// ScanLink processes a single series link, skipping the index walk.
func (e *Engine) ScanLink(ctx context.Context, link string) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	ref, err := message.ParseRef(link)
	if err != nil {
		return fmt.Errorf("relay: series link: %w", err)
	}
	_, err = e.processSeriesRotating(ctx, ref)
	return err
}

// begin acquires the single-run lock and resolves the destination.
func (e *Engine) begin() (func(), error) {
	if !e.runMu.TryLock() {
		return nil, ErrBusy
	}
	e.stopped.Store(false)
	e.running.Store(true)
	e.track.update(func(s *Status) {
		session := s.Session
		*s = Status{Running: true, Phase: PhaseScanning, StartedAt: e.now(), Session: session}
	})

	release := func() {
		e.running.Store(false)
		e.track.update(func(s *Status) {
			s.Running = false
			s.Phase = PhaseIdle
			s.CurrentSeries = ""
			s.CurrentSeason = ""
		})
		e.runMu.Unlock()
	}
	return release, nil
}

// ensureDest resolves the destination channel once per session. Access
// hashes differ between sessions, so rotation invalidates the cached peer.
func (e *Engine) ensureDest(ctx context.Context) error {
	if !e.dest.Zero() {
		return nil
	}
	destRef, err := message.ParseRef(e.cfg.Destination)
	if err != nil {
		return fmt.Errorf("relay: destination: %w", err)
	}
	dest, err := e.tg.Resolve(ctx, destRef)
	if err != nil {
		return fmt.Errorf("relay: resolving destination: %w", err)
	}
	e.dest = dest
	return nil
}

// processSeriesRotating runs one series, rotating the session and retrying
// once if the account hits a flood wait above the threshold. The bool
// reports whether the series was actually walked, as opposed to skipped
// because a previous run already finished it.
func (e *Engine) processSeriesRotating(ctx context.Context, ref message.Ref) (bool, error) {
	if err := e.ensureDest(ctx); err != nil {
		return false, err
	}

	walked, err := e.processSeries(ctx, ref)

	var fw *userbot.FloodWaitError
	if errors.As(err, &fw) && e.rotate != nil {
		e.log.Warn("rotating session after long flood wait", "wait", fw.Wait, "series", ref.Key())
		if rerr := e.rotate(ctx); rerr != nil {
			return walked, fmt.Errorf("relay: session rotation: %w (after %w)", rerr, err)
		}
		e.dest = message.Peer{}
		if err := e.ensureDest(ctx); err != nil {
			return walked, err
		}
		return e.processSeries(ctx, ref)
	}
	return walked, err
}

func (e *Engine) processSeries(ctx context.Context, ref message.Ref) (bool, error) {
	key := ref.Key()

	done, err := e.store.SeriesDone(ctx, key)
	if err != nil {
		return false, err
	}
	if done {
		e.log.Debug("series already done", "series", key)
		e.track.update(func(s *Status) { s.Skipped++ })
		return false, nil
	}

	e.track.update(func(s *Status) {
		s.Phase = PhaseJoining
		s.CurrentSeries = key
		s.CurrentSeason = ""
	})

	peer, err := e.tg.Join(ctx, ref)
	if err != nil {
		return true, err
	}
	if err := e.sleep(ctx, e.cfg.JoinDelay); err != nil {
		return true, err
	}
	if err := e.tg.RefreshDialogs(ctx); err != nil {
		e.log.Warn("dialogs refresh failed", "series", key, "error", err)
	}

	msg, ok, err := e.findDownloadMessage(ctx, peer)
	if err != nil {
		return true, err
	}
	if !ok {
		e.log.Warn("no download message found", "series", key)
		e.track.update(func(s *Status) { s.Skipped++ })
		return true, nil
	}

	complete, err := e.walkSeasons(ctx, key, peer, msg)
	if err != nil {
		return true, err
	}
	if !complete {
		// Leave the series unmarked so the next run retries it.
		e.log.Warn("series left unfinished", "series", key)
		return true, nil
	}

	if err := e.store.MarkSeriesDone(ctx, key, peer.Title); err != nil {
		return true, err
	}
	e.track.update(func(s *Status) { s.SeriesDone++ })
	e.log.Info("series done", "series", key)
	return true, nil
}

// findDownloadMessage locates the message carrying the download keyboard:
// the newest history message with inline buttons, else the pinned message.
func (e *Engine) findDownloadMessage(ctx context.Context, peer message.Peer) (message.Message, bool, error) {
	history, err := e.tg.History(ctx, peer, e.cfg.HistoryLimit, 0)
	if err != nil {
		return message.Message{}, false, err
	}
	for _, m := range history {
		if !m.HasButtons() {
			continue
		}
		if _, ok := findButton(m, e.cfg.DownloadKeywords); ok {
			return m, true, nil
		}
		if len(seasonButtons(m, e.cfg.DownloadKeywords)) > 0 {
			return m, true, nil
		}
	}

	pinned, ok, err := e.tg.Pinned(ctx, peer)
	if err != nil {
		return message.Message{}, false, err
	}
	if ok && pinned.HasButtons() {
		return pinned, true, nil
	}
	return message.Message{}, false, nil
}

// walkSeasons drives the series keyboard: presses the download entry point
// if present, then every unprocessed season button, relaying the file-bot
// links each press reveals. It reports whether every season yielded files,
// so the caller can leave unfinished series unmarked for the next run.
func (e *Engine) walkSeasons(ctx context.Context, seriesKey string, peer message.Peer, msg message.Message) (bool, error) {
	entryClicked := false
	if b, ok := findButton(msg, e.cfg.DownloadKeywords); ok {
		if b.IsURL() {
			// The entry point links straight into a file bot.
			for _, ref := range botRefs(msg) {
				if err := e.relayBot(ctx, seriesKey, ref); err != nil {
					return false, err
				}
			}
			return true, nil
		}

		e.track.update(func(s *Status) { s.Phase = PhaseClicking })
		if err := e.tg.Click(ctx, peer, msg.ID, b.Data); err != nil {
			return false, err
		}
		if err := e.sleep(ctx, e.cfg.ButtonDelay); err != nil {
			return false, err
		}
		refreshed, err := e.tg.Refresh(ctx, peer, msg.ID)
		if err != nil {
			return false, err
		}
		msg = refreshed
		entryClicked = true
	}

	seasons := seasonButtons(msg, e.cfg.DownloadKeywords)
	if len(seasons) == 0 {
		refs := botRefs(msg)
		if len(refs) == 0 {
			if !entryClicked {
				return false, nil
			}
			// The click revealed nothing clickable: some channels make
			// the file bot message the account straight away.
			return e.relayDirect(ctx, seriesKey, "")
		}
		// Single-batch series: the keyboard links into bots directly.
		for _, ref := range refs {
			if err := e.relayBot(ctx, seriesKey, ref); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	complete := true
	for i, season := range seasons {
		if err := e.checkStop(ctx); err != nil {
			return false, err
		}

		// The keyboard usually changes once a season is handled, so it is
		// refetched each round and the button relocated by label.
		if i > 0 {
			refreshed, err := e.tg.Refresh(ctx, peer, msg.ID)
			if err != nil {
				return false, err
			}
			msg = refreshed
			if b, ok := buttonByLabel(msg, season.Label); ok {
				season = b
			}
		}

		done, err := e.store.SeasonDone(ctx, seriesKey, season.Label)
		if err != nil {
			return false, err
		}
		if done {
			e.log.Debug("season already done", "series", seriesKey, "season", season.Label)
			continue
		}

		e.track.update(func(s *Status) {
			s.Phase = PhaseClicking
			s.CurrentSeason = season.Label
		})

		if season.IsURL() {
			ref, err := message.ParseRef(season.URL)
			if err != nil || (ref.StartParam == "" && !isBotUsername(ref.Username)) {
				e.log.Warn("season button links outside a file bot", "label", season.Label, "url", season.URL)
				complete = false
				continue
			}
			if err := e.relayBot(ctx, seriesKey, ref); err != nil {
				return false, err
			}
		} else {
			if err := e.tg.Click(ctx, peer, msg.ID, season.Data); err != nil {
				return false, err
			}
			if err := e.sleep(ctx, e.cfg.ButtonDelay); err != nil {
				return false, err
			}
			refreshed, err := e.tg.Refresh(ctx, peer, msg.ID)
			if err != nil {
				return false, err
			}
			refs := botRefs(refreshed)
			if len(refs) == 0 {
				yielded, err := e.relayDirect(ctx, seriesKey, season.Label)
				if err != nil {
					return false, err
				}
				if !yielded {
					e.log.Warn("season click yielded no files", "series", seriesKey, "season", season.Label)
					complete = false
					continue
				}
			} else {
				for _, ref := range refs {
					if err := e.relayBot(ctx, seriesKey, ref); err != nil {
						return false, err
					}
				}
			}
		}

		if err := e.store.MarkSeasonDone(ctx, seriesKey, season.Label); err != nil {
			return false, err
		}
		e.track.update(func(s *Status) { s.SeasonsDone++ })

		if err := e.sleep(ctx, e.cfg.SeasonDelay); err != nil {
			return false, err
		}
	}
	return complete, nil
}

// relayBot collects every file a bot deep link yields and forwards the new
// ones to the destination.
func (e *Engine) relayBot(ctx context.Context, seriesKey string, ref message.Ref) error {
	bot, err := e.tg.Resolve(ctx, message.Ref{Username: ref.Username})
	if err != nil {
		return err
	}

	e.track.update(func(s *Status) { s.Phase = PhaseCollecting })
	files, err := e.collect(ctx, bot, ref.StartParam)
	if err != nil {
		return err
	}
	e.log.Info("collected files", "bot", bot.Name(), "count", len(files))

	return e.forwardCollected(ctx, seriesKey, files)
}

// relayDirect waits for files DMed by any bot after a click that revealed
// no deep links, and forwards whatever arrives. It reports whether the
// wait yielded anything.
func (e *Engine) relayDirect(ctx context.Context, seriesKey, season string) (bool, error) {
	e.track.update(func(s *Status) { s.Phase = PhaseCollecting })
	files, err := e.collectDirect(ctx)
	if err != nil {
		return false, err
	}
	e.log.Info("collected direct files", "series", seriesKey, "season", season, "count", len(files))
	if len(files) == 0 {
		return false, nil
	}
	return true, e.forwardCollected(ctx, seriesKey, files)
}

// forwardCollected forwards the not-yet-seen files to the destination.
func (e *Engine) forwardCollected(ctx context.Context, seriesKey string, files []collected) error {
	e.track.update(func(s *Status) { s.Phase = PhaseForwarding })
	for _, f := range files {
		if err := e.checkStop(ctx); err != nil {
			return err
		}

		fp := fingerprint(f.bot.ID, f)
		seen, err := e.store.ForwardSeen(ctx, fp)
		if err != nil {
			return err
		}
		if seen {
			e.track.update(func(s *Status) { s.Skipped++ })
			continue
		}

		if err := e.tg.Forward(ctx, f.bot, e.dest, []int{f.msgID}); err != nil {
			return err
		}
		if err := e.store.MarkForwarded(ctx, fp, seriesKey, f.media.FileName, f.media.Size); err != nil {
			return err
		}
		e.track.update(func(s *Status) { s.FilesRelayed++ })

		if err := e.sleep(ctx, e.cfg.ForwardDelay); err != nil {
			return err
		}
	}
	return nil
}

// fingerprint identifies a file across bots and re-sends. Name and size
// pin the content; the bot chat message ID is the fallback for unnamed
// media.
func fingerprint(botID int64, f collected) string {
	if f.media.FileName != "" {
		return fmt.Sprintf("%s:%d", f.media.FileName, f.media.Size)
	}
	return fmt.Sprintf("bot:%d:msg:%d:%d", botID, f.msgID, f.media.Size)
}

func (e *Engine) checkStop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.stopped.Load() {
		return ErrStopped
	}
	return nil
}

func (e *Engine) fail(err error) error {
	e.track.update(func(s *Status) { s.LastError = err.Error() })
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
