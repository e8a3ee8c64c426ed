// Package relay walks an index channel for series links, drives the inline
// keyboards of series channels and file bots, and forwards the collected
// media to a destination channel.
package relay

import (
	"context"
	"time"

	"seriesrelay/pkg/message"
)

// Telegram is the slice of the userbot client the engine needs. It is an
// interface so tests can drive the engine against a scripted fake.
type Telegram interface {
	Resolve(ctx context.Context, ref message.Ref) (message.Peer, error)
	Join(ctx context.Context, ref message.Ref) (message.Peer, error)
	RefreshDialogs(ctx context.Context) error
	History(ctx context.Context, peer message.Peer, limit, offsetID int) ([]message.Message, error)
	Pinned(ctx context.Context, peer message.Peer) (message.Message, bool, error)
	Refresh(ctx context.Context, peer message.Peer, id int) (message.Message, error)
	Click(ctx context.Context, peer message.Peer, msgID int, data []byte) error
	StartBot(ctx context.Context, bot message.Peer, param string) error
	Forward(ctx context.Context, from, to message.Peer, ids []int) error
	OnPrivateMessage(fn func(from message.Peer, msg message.Message))
}

// Store persists which series, seasons, and files are already handled.
type Store interface {
	SeriesDone(ctx context.Context, key string) (bool, error)
	MarkSeriesDone(ctx context.Context, key, title string) error
	SeasonDone(ctx context.Context, seriesKey, label string) (bool, error)
	MarkSeasonDone(ctx context.Context, seriesKey, label string) error
	ForwardSeen(ctx context.Context, fingerprint string) (bool, error)
	MarkForwarded(ctx context.Context, fingerprint, seriesKey, fileName string, size int64) error
}

// Config tunes a single engine instance.
type Config struct {
	Index       string
	Destination string

	HistoryLimit int
	IdleTimeout  time.Duration
	MaxPages     int
	MaxSeries    int

	ButtonDelay   time.Duration
	SeasonDelay   time.Duration
	ForwardDelay  time.Duration
	NextDelay     time.Duration
	JoinDelay     time.Duration
	BotStartDelay time.Duration

	DownloadKeywords []string
	SendAllKeywords  []string
	NextKeywords     []string
}
