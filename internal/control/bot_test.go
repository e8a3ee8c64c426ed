package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"seriesrelay/internal/relay"
	"seriesrelay/pkg/message"
)

type fakeEngine struct {
	mu       sync.Mutex
	runs     int
	scanned  []string
	stopped  bool
	runErr   error
	status   relay.Status
	started  chan struct{}
	blockRun chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{started: make(chan struct{}, 8)}
}

func (f *fakeEngine) Run(ctx context.Context) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	f.started <- struct{}{}
	if f.blockRun != nil {
		select {
		case <-f.blockRun:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.runErr
}

func (f *fakeEngine) ScanLink(ctx context.Context, link string) error {
	f.mu.Lock()
	f.scanned = append(f.scanned, link)
	f.mu.Unlock()
	f.started <- struct{}{}
	return f.runErr
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeEngine) Status() relay.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

type fakeJoiner struct {
	refs []message.Ref
	peer message.Peer
	err  error
}

func (f *fakeJoiner) Join(_ context.Context, ref message.Ref) (message.Peer, error) {
	f.refs = append(f.refs, ref)
	return f.peer, f.err
}

// botServer records every sendMessage and editMessageText the bot issues.
type botServer struct {
	mu    sync.Mutex
	sent  []SendMessageRequest
	edits []EditMessageTextRequest
	srv   *httptest.Server
}

func newBotServer(t *testing.T) *botServer {
	t.Helper()
	bs := &botServer{}
	bs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req SendMessageRequest
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("unmarshal sendMessage: %v", err)
			}
			bs.mu.Lock()
			bs.sent = append(bs.sent, req)
			n := len(bs.sent)
			bs.mu.Unlock()
			writeJSON(t, w, APIResponse[Message]{
				OK:     true,
				Result: Message{MessageID: n, Chat: Chat{ID: req.ChatID}},
			})
		case strings.HasSuffix(r.URL.Path, "/editMessageText"):
			var req EditMessageTextRequest
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("unmarshal editMessageText: %v", err)
			}
			bs.mu.Lock()
			bs.edits = append(bs.edits, req)
			bs.mu.Unlock()
			writeJSON(t, w, APIResponse[Message]{
				OK:     true,
				Result: Message{MessageID: req.MessageID, Chat: Chat{ID: req.ChatID}},
			})
		default:
			writeJSON(t, w, APIResponse[json.RawMessage]{OK: true, Result: json.RawMessage("{}")})
		}
	}))
	t.Cleanup(bs.srv.Close)
	return bs
}

func (bs *botServer) sentTexts() []string {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	texts := make([]string, len(bs.sent))
	for i, m := range bs.sent {
		texts[i] = m.Text
	}
	return texts
}

func (bs *botServer) waitSent(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bs.mu.Lock()
		got := len(bs.sent)
		bs.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent messages, got %d", n, len(bs.sentTexts()))
}

func newTestBot(t *testing.T, engine Engine, joiner Joiner) (*Bot, *botServer) {
	t.Helper()
	bs := newBotServer(t)
	client := NewClient("TOKEN", bs.srv.URL)
	bot := NewBot(client, engine, joiner, []int64{7}, time.Second, nil)
	bot.runCtx = context.Background()
	return bot, bs
}

func adminUpdate(text string) *Update {
	return &Update{
		UpdateID: 1,
		Message: &Message{
			MessageID: 1,
			From:      &User{ID: 7},
			Chat:      Chat{ID: 7, Type: "private"},
			Text:      text,
		},
	}
}

func TestBotIgnoresNonAdmin(t *testing.T) {
	engine := newFakeEngine()
	bot, bs := newTestBot(t, engine, nil)

	u := adminUpdate("/stop")
	u.Message.From.ID = 999
	bot.handleUpdate(u)

	if engine.stopped {
		t.Error("engine stopped by non-admin")
	}
	if got := len(bs.sentTexts()); got != 0 {
		t.Errorf("sent %d messages, want 0", got)
	}
}

func TestBotStatusCommand(t *testing.T) {
	engine := newFakeEngine()
	engine.status = relay.Status{
		Running:       true,
		Phase:         relay.PhaseForwarding,
		CurrentSeries: "Some Show",
		FilesRelayed:  12,
	}
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/status"))

	texts := bs.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want 1", len(texts))
	}
	if !strings.Contains(texts[0], "Some Show") {
		t.Errorf("status reply missing series name: %q", texts[0])
	}
	if !strings.Contains(texts[0], "Files relayed: 12") {
		t.Errorf("status reply missing relay count: %q", texts[0])
	}
}

func TestBotScanRunsEngine(t *testing.T) {
	engine := newFakeEngine()
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/scan"))

	select {
	case <-engine.started:
	case <-time.After(2 * time.Second):
		t.Fatal("engine.Run was not called")
	}
	bs.waitSent(t, 2) // "Started" plus completion reply

	engine.mu.Lock()
	runs := engine.runs
	engine.mu.Unlock()
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestBotScanWithLink(t *testing.T) {
	engine := newFakeEngine()
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/scan https://t.me/some_series"))

	select {
	case <-engine.started:
	case <-time.After(2 * time.Second):
		t.Fatal("engine.ScanLink was not called")
	}
	bs.waitSent(t, 2)

	engine.mu.Lock()
	scanned := append([]string(nil), engine.scanned...)
	engine.mu.Unlock()
	if len(scanned) != 1 || scanned[0] != "https://t.me/some_series" {
		t.Errorf("scanned = %v, want the link passed through", scanned)
	}
}

func TestBotScanBusy(t *testing.T) {
	engine := newFakeEngine()
	engine.runErr = relay.ErrBusy
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/scan"))
	bs.waitSent(t, 2)

	var found bool
	for _, text := range bs.sentTexts() {
		if strings.Contains(text, "already in progress") {
			found = true
		}
	}
	if !found {
		t.Errorf("no busy reply in %v", bs.sentTexts())
	}
}

func TestBotStopCommand(t *testing.T) {
	engine := newFakeEngine()
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/stop"))

	if !engine.stopped {
		t.Error("engine.Stop was not called")
	}
	if len(bs.sentTexts()) != 1 {
		t.Errorf("sent %d messages, want 1", len(bs.sentTexts()))
	}
}

func TestBotJoinCommand(t *testing.T) {
	joiner := &fakeJoiner{peer: message.Peer{Kind: message.PeerChannel, ID: 5, Title: "Some Show"}}
	bot, bs := newTestBot(t, newFakeEngine(), joiner)

	bot.handleUpdate(adminUpdate("/join @some_show"))

	if len(joiner.refs) != 1 || joiner.refs[0].Username != "some_show" {
		t.Fatalf("joiner.refs = %v, want one ref for some_show", joiner.refs)
	}
	texts := bs.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Some Show") {
		t.Errorf("join reply = %v, want confirmation naming the channel", texts)
	}
}

func TestBotJoinRejectsBadLink(t *testing.T) {
	joiner := &fakeJoiner{}
	bot, bs := newTestBot(t, newFakeEngine(), joiner)

	bot.handleUpdate(adminUpdate("/join not a link"))

	if len(joiner.refs) != 0 {
		t.Errorf("joiner called with invalid link: %v", joiner.refs)
	}
	texts := bs.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "does not look like") {
		t.Errorf("reply = %v, want a parse-failure message", texts)
	}
}

func TestBotCommandWithMention(t *testing.T) {
	engine := newFakeEngine()
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/status@relay_bot"))

	if len(bs.sentTexts()) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bs.sentTexts()))
	}
}

func TestBotNotifyEditsProgress(t *testing.T) {
	engine := newFakeEngine()
	engine.blockRun = make(chan struct{})
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/scan"))
	<-engine.started
	bs.waitSent(t, 1) // the "Started" reply

	// First notify creates the progress message.
	bot.Notify(relay.Status{Running: true, Phase: relay.PhaseScanning})
	bs.waitSent(t, 2)

	// Reset the rate limiter so the next notify goes through as an edit.
	bot.mu.Lock()
	bot.lastEdit = time.Time{}
	bot.mu.Unlock()

	bot.Notify(relay.Status{Running: true, Phase: relay.PhaseForwarding, FilesRelayed: 3})

	bs.mu.Lock()
	edits := append([]EditMessageTextRequest(nil), bs.edits...)
	bs.mu.Unlock()
	if len(edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(edits))
	}
	if !strings.Contains(edits[0].Text, "Files relayed: 3") {
		t.Errorf("edit text = %q, want the updated relay count", edits[0].Text)
	}

	close(engine.blockRun)
}

func TestBotNotifyRateLimited(t *testing.T) {
	engine := newFakeEngine()
	engine.blockRun = make(chan struct{})
	bot, bs := newTestBot(t, engine, nil)

	bot.handleUpdate(adminUpdate("/scan"))
	<-engine.started
	bs.waitSent(t, 1)

	bot.Notify(relay.Status{Running: true})
	bs.waitSent(t, 2)
	bot.Notify(relay.Status{Running: true, FilesRelayed: 1}) // inside the edit interval

	bs.mu.Lock()
	edits := len(bs.edits)
	bs.mu.Unlock()
	if edits != 0 {
		t.Errorf("edits = %d, want 0 within the rate limit window", edits)
	}

	close(engine.blockRun)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in  string
		cmd string
		arg string
	}{
		{"/scan", "/scan", ""},
		{"/scan https://t.me/x", "/scan", "https://t.me/x"},
		{"/status@relay_bot", "/status", ""},
		{"/join@relay_bot @chan", "/join", "@chan"},
		{"  /stop  ", "/stop", ""},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, arg, tt.cmd, tt.arg)
		}
	}
}
