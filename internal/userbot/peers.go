package userbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"seriesrelay/pkg/message"
)

// ErrPeerNotFound indicates the reference resolved to nothing usable.
var ErrPeerNotFound = errors.New("userbot: peer not found")

// Resolve turns a reference into a concrete peer with an access hash.
// Invite-hash references resolve only when the account already joined.
func (c *Client) Resolve(ctx context.Context, ref message.Ref) (message.Peer, error) {
	api, err := c.client()
	if err != nil {
		return message.Peer{}, err
	}

	if ref.InviteHash != "" {
		return c.resolveInvite(ctx, api, ref.InviteHash)
	}

	var resolved *tg.ContactsResolvedPeer
	err = c.invoke(ctx, "contacts.resolveUsername", func(ctx context.Context) error {
		var err error
		resolved, err = api.ContactsResolveUsername(ctx, ref.Username)
		return err
	})
	if err != nil {
		return message.Peer{}, fmt.Errorf("userbot: resolve @%s: %w", ref.Username, err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return channelPeer(ch), nil
		}
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			return message.Peer{
				Kind:       message.PeerUser,
				ID:         user.ID,
				AccessHash: user.AccessHash,
				Username:   user.Username,
			}, nil
		}
	}
	return message.Peer{}, fmt.Errorf("%w: @%s", ErrPeerNotFound, ref.Username)
}

func (c *Client) resolveInvite(ctx context.Context, api *tg.Client, hash string) (message.Peer, error) {
	var invite tg.ChatInviteClass
	err := c.invoke(ctx, "messages.checkChatInvite", func(ctx context.Context) error {
		var err error
		invite, err = api.MessagesCheckChatInvite(ctx, hash)
		return err
	})
	if err != nil {
		return message.Peer{}, fmt.Errorf("userbot: check invite: %w", err)
	}

	switch i := invite.(type) {
	case *tg.ChatInviteAlready:
		if ch, ok := i.Chat.(*tg.Channel); ok {
			return channelPeer(ch), nil
		}
	case *tg.ChatInvitePeek:
		if ch, ok := i.Chat.(*tg.Channel); ok {
			return channelPeer(ch), nil
		}
	}
	return message.Peer{}, fmt.Errorf("%w: invite %s (not a member)", ErrPeerNotFound, hash)
}

// Join makes the account a member of the referenced channel and returns the
// resolved peer. Already being a member is not an error.
func (c *Client) Join(ctx context.Context, ref message.Ref) (message.Peer, error) {
	api, err := c.client()
	if err != nil {
		return message.Peer{}, err
	}

	if ref.InviteHash != "" {
		var updates tg.UpdatesClass
		err := c.invoke(ctx, "messages.importChatInvite", func(ctx context.Context) error {
			var err error
			updates, err = api.MessagesImportChatInvite(ctx, ref.InviteHash)
			return err
		})
		if err != nil {
			if tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
				return c.resolveInvite(ctx, api, ref.InviteHash)
			}
			return message.Peer{}, fmt.Errorf("userbot: join invite: %w", err)
		}
		if peer, ok := peerFromUpdates(updates); ok {
			return peer, nil
		}
		return c.resolveInvite(ctx, api, ref.InviteHash)
	}

	peer, err := c.Resolve(ctx, ref)
	if err != nil {
		return message.Peer{}, err
	}
	if peer.Kind != message.PeerChannel {
		return peer, nil
	}

	err = c.invoke(ctx, "channels.joinChannel", func(ctx context.Context) error {
		_, err := api.ChannelsJoinChannel(ctx, &tg.InputChannel{
			ChannelID:  peer.ID,
			AccessHash: peer.AccessHash,
		})
		return err
	})
	if err != nil && !tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
		return message.Peer{}, fmt.Errorf("userbot: join %s: %w", peer.Name(), err)
	}
	return peer, nil
}

// RefreshDialogs reloads the dialog list. Telegram occasionally requires
// this before history of a newly joined channel becomes visible.
func (c *Client) RefreshDialogs(ctx context.Context) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	err = c.invoke(ctx, "messages.getDialogs", func(ctx context.Context) error {
		_, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      100,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("userbot: refresh dialogs: %w", err)
	}
	return nil
}

func channelPeer(ch *tg.Channel) message.Peer {
	return message.Peer{
		Kind:       message.PeerChannel,
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Username:   ch.Username,
		Title:      ch.Title,
	}
}

func peerFromUpdates(updates tg.UpdatesClass) (message.Peer, bool) {
	u, ok := updates.(*tg.Updates)
	if !ok {
		return message.Peer{}, false
	}
	for _, chat := range u.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return channelPeer(ch), true
		}
	}
	return message.Peer{}, false
}

func inputPeer(p message.Peer) tg.InputPeerClass {
	switch p.Kind {
	case message.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: p.ID, AccessHash: p.AccessHash}
	case message.PeerUser:
		return &tg.InputPeerUser{UserID: p.ID, AccessHash: p.AccessHash}
	default:
		return &tg.InputPeerChat{ChatID: p.ID}
	}
}
