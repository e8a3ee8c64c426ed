// Package userbot wraps the MTProto client used to scan channels, press
// inline buttons, talk to file bots, and forward media as a regular user
// account.
package userbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"seriesrelay/pkg/message"
)

// Options configures a Client.
type Options struct {
	APIID   int
	APIHash string

	// FloodThreshold is the flood wait above which calls fail with a
	// *FloodWaitError instead of sleeping through the wait.
	FloodThreshold time.Duration

	Logger *slog.Logger
}

// Client is a connected MTProto user session. All API calls retry short
// flood waits transparently and surface long ones as *FloodWaitError.
type Client struct {
	opts Options
	log  *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	api     *tg.Client
	self    *tg.User
	session string
	cancel  context.CancelFunc
	done    chan error

	handlerMu sync.RWMutex
	onPrivate func(from message.Peer, msg message.Message)
}

// New builds an unconnected client. Call Connect before issuing API calls.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FloodThreshold == 0 {
		opts.FloodThreshold = time.Hour
	}
	return &Client{
		opts:  opts,
		log:   opts.Logger,
		sleep: sleepCtx,
	}
}

// Connect opens the session stored at sessionPath and blocks until the
// client is authorized and ready, or ctx is cancelled. The session must
// already be authorized; interactive login is out of scope.
func (c *Client) Connect(ctx context.Context, sessionPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return errors.New("userbot: already connected")
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		c.dispatchPrivate(e, u)
		return nil
	})

	client := telegram.NewClient(c.opts.APIID, c.opts.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: sessionPath},
		UpdateHandler:  dispatcher,
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ready := make(chan error, 1)
	done := make(chan error, 1)

	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				ready <- fmt.Errorf("userbot: auth status: %w", err)
				return err
			}
			if !status.Authorized {
				err := fmt.Errorf("userbot: session %s is not authorized", sessionPath)
				ready <- err
				return err
			}

			self, err := client.Self(ctx)
			if err != nil {
				ready <- fmt.Errorf("userbot: fetch self: %w", err)
				return err
			}

			c.mu.Lock()
			c.api = client.API()
			c.self = self
			c.mu.Unlock()

			ready <- nil
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-done
			return err
		}
	case err := <-done:
		cancel()
		if err == nil {
			err = errors.New("userbot: client stopped before becoming ready")
		}
		return fmt.Errorf("userbot: connect %s: %w", sessionPath, err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}

	c.session = sessionPath
	c.cancel = cancel
	c.done = done
	c.log.Info("userbot connected", "session", sessionPath, "user_id", c.self.ID)
	return nil
}

// Close stops the client and waits for the run loop to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.api, c.self = nil, nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := <-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("userbot: close: %w", err)
	}
	return nil
}

// Switch tears down the current session and connects with a different one.
// Used when the active account hits a long flood wait.
func (c *Client) Switch(ctx context.Context, sessionPath string) error {
	if err := c.Close(); err != nil {
		c.log.Warn("closing previous session", "error", err)
	}
	return c.Connect(ctx, sessionPath)
}

// Session returns the path of the session file in use.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Self returns the authorized user as a Peer.
func (c *Client) Self() message.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil {
		return message.Peer{}
	}
	return message.Peer{
		Kind:       message.PeerUser,
		ID:         c.self.ID,
		AccessHash: c.self.AccessHash,
		Username:   c.self.Username,
	}
}

// OnPrivateMessage registers a handler for incoming private messages.
// It replaces any previous handler; pass nil to unsubscribe.
func (c *Client) OnPrivateMessage(fn func(from message.Peer, msg message.Message)) {
	c.handlerMu.Lock()
	c.onPrivate = fn
	c.handlerMu.Unlock()
}

func (c *Client) dispatchPrivate(ents tg.Entities, u *tg.UpdateNewMessage) {
	m, ok := u.Message.(*tg.Message)
	if !ok || m.Out {
		return
	}
	peer, ok := m.PeerID.(*tg.PeerUser)
	if !ok {
		return
	}

	from := message.Peer{Kind: message.PeerUser, ID: peer.UserID}
	if user, ok := ents.Users[peer.UserID]; ok {
		from.AccessHash = user.AccessHash
		from.Username = user.Username
		from.Bot = user.Bot
	}

	c.handlerMu.RLock()
	fn := c.onPrivate
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(from, convertMessage(m))
	}
}

func (c *Client) client() (*tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, errors.New("userbot: not connected")
	}
	return c.api, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
