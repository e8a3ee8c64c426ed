package userbot

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"

	"seriesrelay/pkg/message"
)

// History fetches up to limit messages from the peer, newest first.
// offsetID of zero starts from the latest message.
func (c *Client) History(ctx context.Context, peer message.Peer, limit, offsetID int) ([]message.Message, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}

	var history tg.MessagesMessagesClass
	err = c.invoke(ctx, "messages.getHistory", func(ctx context.Context) error {
		var err error
		history, err = api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     inputPeer(peer),
			Limit:    limit,
			OffsetID: offsetID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("userbot: history of %s: %w", peer.Name(), err)
	}

	raw, ok := historyMessages(history)
	if !ok {
		return nil, nil
	}

	out := make([]message.Message, 0, len(raw))
	for _, m := range raw {
		if msg, ok := m.(*tg.Message); ok {
			out = append(out, convertMessage(msg))
		}
	}
	return out, nil
}

// Pinned returns the pinned message of the peer, if any.
func (c *Client) Pinned(ctx context.Context, peer message.Peer) (message.Message, bool, error) {
	api, err := c.client()
	if err != nil {
		return message.Message{}, false, err
	}

	var result tg.MessagesMessagesClass
	err = c.invoke(ctx, "messages.search", func(ctx context.Context) error {
		var err error
		result, err = api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
			Peer:   inputPeer(peer),
			Filter: &tg.InputMessagesFilterPinned{},
			Limit:  1,
		})
		return err
	})
	if err != nil {
		return message.Message{}, false, fmt.Errorf("userbot: pinned of %s: %w", peer.Name(), err)
	}

	raw, ok := historyMessages(result)
	if !ok || len(raw) == 0 {
		return message.Message{}, false, nil
	}
	if msg, ok := raw[0].(*tg.Message); ok {
		return convertMessage(msg), true, nil
	}
	return message.Message{}, false, nil
}

// Refresh re-fetches a single channel message, picking up edits made after
// the initial history fetch.
func (c *Client) Refresh(ctx context.Context, peer message.Peer, id int) (message.Message, error) {
	api, err := c.client()
	if err != nil {
		return message.Message{}, err
	}
	if peer.Kind != message.PeerChannel {
		msgs, err := c.History(ctx, peer, 1, id+1)
		if err != nil {
			return message.Message{}, err
		}
		for _, m := range msgs {
			if m.ID == id {
				return m, nil
			}
		}
		return message.Message{}, fmt.Errorf("userbot: message %d not found in %s", id, peer.Name())
	}

	var result tg.MessagesMessagesClass
	err = c.invoke(ctx, "channels.getMessages", func(ctx context.Context) error {
		var err error
		result, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: peer.ID, AccessHash: peer.AccessHash},
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: id}},
		})
		return err
	})
	if err != nil {
		return message.Message{}, fmt.Errorf("userbot: refresh message %d: %w", id, err)
	}

	raw, _ := historyMessages(result)
	for _, m := range raw {
		if msg, ok := m.(*tg.Message); ok && msg.ID == id {
			return convertMessage(msg), nil
		}
	}
	return message.Message{}, fmt.Errorf("userbot: message %d not found in %s", id, peer.Name())
}

func historyMessages(history tg.MessagesMessagesClass) ([]tg.MessageClass, bool) {
	switch h := history.(type) {
	case *tg.MessagesMessages:
		return h.Messages, true
	case *tg.MessagesMessagesSlice:
		return h.Messages, true
	case *tg.MessagesChannelMessages:
		return h.Messages, true
	default:
		return nil, false
	}
}
