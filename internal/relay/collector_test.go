package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"seriesrelay/pkg/message"
)

func (f *fakeTG) emit(from message.Peer, msg message.Message) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(from, msg)
	}
}

func (f *fakeTG) waitHandler(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		ok := f.handler != nil
		f.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("collector never subscribed to private messages")
}

func TestCollect_SendAllEditsAndPagination(t *testing.T) {
	t.Parallel()

	bot := message.Peer{Kind: message.PeerUser, ID: 400, Username: "file_bot"}
	tg := &fakeTG{
		peers:     map[string]message.Peer{"file_bot": bot},
		invites:   map[string]message.Peer{},
		histories: map[int64][]message.Message{},
		refreshes: map[string][]message.Message{},
	}
	e := newTestEngine(tg, newFakeStore())

	var (
		files []collected
		err   error
		done  = make(chan struct{})
	)
	go func() {
		files, err = e.collect(context.Background(), bot, "p1")
		close(done)
	}()
	tg.waitHandler(t)

	now := time.Now()
	prompt := message.Message{
		ID:      1,
		Date:    now,
		Text:    "Choose an option",
		Buttons: [][]message.Button{{{Label: "📦 Send All Files", Data: []byte("all")}}},
	}
	media := mediaMsg(2, "e1.mkv", 100)
	edited := media
	edited.EditDate = now.Add(time.Second)
	next := message.Message{
		ID:      3,
		Date:    now,
		Buttons: [][]message.Button{{{Label: "Next ▶", Data: []byte("pg2")}}},
	}

	other := message.Peer{Kind: message.PeerUser, ID: 999, Username: "other_bot", Bot: true}
	tg.emit(bot, prompt)
	tg.emit(bot, media)
	tg.emit(bot, media) // unchanged duplicate, must be ignored
	tg.emit(other, mediaMsg(9, "other.mkv", 1))
	tg.emit(bot, edited) // edit bumps the stamp, reprocessed
	tg.emit(bot, next)

	<-done
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	// Original plus its edited version; the duplicate and the foreign
	// peer's message are dropped.
	if len(files) != 2 {
		t.Fatalf("files = %d (%+v), want 2", len(files), files)
	}

	if len(tg.started) != 1 || tg.started[0] != "file_bot:p1" {
		t.Fatalf("started = %v", tg.started)
	}
	if len(tg.clicked) != 2 {
		t.Fatalf("clicked = %v, want send-all and next", tg.clicked)
	}
	if !strings.HasSuffix(tg.clicked[0], ":all") || !strings.HasSuffix(tg.clicked[1], ":pg2") {
		t.Fatalf("clicked = %v", tg.clicked)
	}
}

func TestCollect_StaleBacklogSkipped(t *testing.T) {
	t.Parallel()

	bot := message.Peer{Kind: message.PeerUser, ID: 401, Username: "stale_bot"}
	old := mediaMsg(7, "old.mkv", 5)
	old.Date = time.Now().Add(-time.Hour)

	tg := &fakeTG{
		peers:     map[string]message.Peer{"stale_bot": bot},
		invites:   map[string]message.Peer{},
		histories: map[int64][]message.Message{401: {old}},
		refreshes: map[string][]message.Message{},
	}
	e := newTestEngine(tg, newFakeStore())

	files, err := e.collect(context.Background(), bot, "p")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("stale backlog should be skipped, got %+v", files)
	}
}

func TestCollect_PageCap(t *testing.T) {
	t.Parallel()

	bot := message.Peer{Kind: message.PeerUser, ID: 402, Username: "page_bot"}
	tg := &fakeTG{
		peers:     map[string]message.Peer{"page_bot": bot},
		invites:   map[string]message.Peer{},
		histories: map[int64][]message.Message{},
		refreshes: map[string][]message.Message{},
	}
	e := newTestEngine(tg, newFakeStore())
	e.cfg.MaxPages = 1

	done := make(chan struct{})
	go func() {
		_, _ = e.collect(context.Background(), bot, "p")
		close(done)
	}()
	tg.waitHandler(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		foreign := message.Peer{Kind: message.PeerUser, ID: 500 + int64(i)}
		tg.emit(foreign, message.Message{}) // foreign peers, ignored
		tg.emit(bot, message.Message{
			ID:      10 + i,
			Date:    now.Add(time.Duration(i) * time.Second),
			Buttons: [][]message.Button{{{Label: "More >>", Data: []byte("pg")}}},
		})
	}
	<-done

	if len(tg.clicked) != 1 {
		t.Fatalf("clicked = %v, want pagination capped at 1", tg.clicked)
	}
}

func TestCollect_StopEndsWait(t *testing.T) {
	t.Parallel()

	bot := message.Peer{Kind: message.PeerUser, ID: 403, Username: "stop_bot"}
	tg := &fakeTG{
		peers:     map[string]message.Peer{"stop_bot": bot},
		invites:   map[string]message.Peer{},
		histories: map[int64][]message.Message{},
		refreshes: map[string][]message.Message{},
	}
	e := newTestEngine(tg, newFakeStore())
	// Long enough that only the stop request can end the wait in time.
	e.cfg.IdleTimeout = 10 * time.Second

	var (
		files []collected
		err   error
		done  = make(chan struct{})
	)
	go func() {
		files, err = e.collect(context.Background(), bot, "p")
		close(done)
	}()
	tg.waitHandler(t)

	e.Stop()
	tg.emit(bot, mediaMsg(5, "late.mkv", 9))

	<-done
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
	if len(files) != 0 {
		t.Fatalf("files = %+v, want nothing collected after the stop", files)
	}
}

func TestCollect_MediaMessageWithPagination(t *testing.T) {
	t.Parallel()

	bot := message.Peer{Kind: message.PeerUser, ID: 404, Username: "combo_bot"}
	tg := &fakeTG{
		peers:     map[string]message.Peer{"combo_bot": bot},
		invites:   map[string]message.Peer{},
		histories: map[int64][]message.Message{},
		refreshes: map[string][]message.Message{},
	}
	e := newTestEngine(tg, newFakeStore())

	var (
		files []collected
		err   error
		done  = make(chan struct{})
	)
	go func() {
		files, err = e.collect(context.Background(), bot, "p")
		close(done)
	}()
	tg.waitHandler(t)

	// Bots often attach the page controls to the last file of a page.
	withNext := mediaMsg(20, "e1.mkv", 50)
	withNext.Buttons = [][]message.Button{{{Label: "Next ▶", Data: []byte("pg2")}}}
	tg.emit(bot, withNext)

	<-done
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %+v, want the media collected", files)
	}
	if len(tg.clicked) != 1 || !strings.HasSuffix(tg.clicked[0], ":pg2") {
		t.Fatalf("clicked = %v, want the attached pagination followed", tg.clicked)
	}
}

func TestCollectDirect_AcceptsAnyBot(t *testing.T) {
	t.Parallel()

	tg := &fakeTG{
		peers:     map[string]message.Peer{},
		invites:   map[string]message.Peer{},
		histories: map[int64][]message.Message{},
		refreshes: map[string][]message.Message{},
	}
	e := newTestEngine(tg, newFakeStore())

	var (
		files []collected
		err   error
		done  = make(chan struct{})
	)
	go func() {
		files, err = e.collectDirect(context.Background())
		close(done)
	}()
	tg.waitHandler(t)

	human := message.Peer{Kind: message.PeerUser, ID: 600, Username: "somebody"}
	botA := message.Peer{Kind: message.PeerUser, ID: 601, Username: "alpha_bot"}
	botB := message.Peer{Kind: message.PeerUser, ID: 602, Bot: true}
	tg.emit(human, mediaMsg(30, "chatter.mkv", 1))
	tg.emit(botA, mediaMsg(31, "e1.mkv", 10))
	tg.emit(botB, mediaMsg(32, "e2.mkv", 20))

	<-done
	if err != nil {
		t.Fatalf("collectDirect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v, want only the bot deliveries", files)
	}
	if files[0].bot.ID != 601 || files[1].bot.ID != 602 {
		t.Fatalf("senders = %d, %d; want 601, 602", files[0].bot.ID, files[1].bot.ID)
	}
}
