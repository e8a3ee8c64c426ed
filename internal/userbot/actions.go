package userbot

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"seriesrelay/pkg/message"
)

// Click presses an inline callback button. Bots that never answer the
// callback produce BOT_RESPONSE_TIMEOUT, which still delivers the click and
// therefore counts as success.
func (c *Client) Click(ctx context.Context, peer message.Peer, msgID int, data []byte) error {
	api, err := c.client()
	if err != nil {
		return err
	}

	req := &tg.MessagesGetBotCallbackAnswerRequest{
		Peer:  inputPeer(peer),
		MsgID: msgID,
	}
	req.SetData(data)

	err = c.invoke(ctx, "messages.getBotCallbackAnswer", func(ctx context.Context) error {
		_, err := api.MessagesGetBotCallbackAnswer(ctx, req)
		if tgerr.Is(err, "BOT_RESPONSE_TIMEOUT") {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("userbot: click button on %s/%d: %w", peer.Name(), msgID, err)
	}
	return nil
}

// StartBot opens a conversation with a bot via a deep-link start parameter,
// the equivalent of following a t.me/bot?start=param link.
func (c *Client) StartBot(ctx context.Context, bot message.Peer, param string) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	if bot.Kind != message.PeerUser {
		return fmt.Errorf("userbot: start bot: %s is not a user", bot.Name())
	}
	// A deep link without a parameter cannot use messages.startBot
	// (START_PARAM_EMPTY); a plain /start message is equivalent.
	if param == "" {
		return c.SendText(ctx, bot, "/start")
	}

	err = c.invoke(ctx, "messages.startBot", func(ctx context.Context) error {
		_, err := api.MessagesStartBot(ctx, &tg.MessagesStartBotRequest{
			Bot:        &tg.InputUser{UserID: bot.ID, AccessHash: bot.AccessHash},
			Peer:       inputPeer(bot),
			RandomID:   randomID(),
			StartParam: param,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("userbot: start %s: %w", bot.Name(), err)
	}
	return nil
}

// SendText sends a plain text message to the peer.
func (c *Client) SendText(ctx context.Context, peer message.Peer, text string) error {
	api, err := c.client()
	if err != nil {
		return err
	}

	err = c.invoke(ctx, "messages.sendMessage", func(ctx context.Context) error {
		_, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:      inputPeer(peer),
			Message:   text,
			RandomID:  randomID(),
			NoWebpage: true,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("userbot: send to %s: %w", peer.Name(), err)
	}
	return nil
}

// Forward copies messages from one peer to another, preserving media.
func (c *Client) Forward(ctx context.Context, from, to message.Peer, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	api, err := c.client()
	if err != nil {
		return err
	}

	randomIDs := make([]int64, len(ids))
	for i := range randomIDs {
		randomIDs[i] = randomID()
	}

	err = c.invoke(ctx, "messages.forwardMessages", func(ctx context.Context) error {
		_, err := api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
			FromPeer: inputPeer(from),
			ToPeer:   inputPeer(to),
			ID:       ids,
			RandomID: randomIDs,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("userbot: forward %d messages to %s: %w", len(ids), to.Name(), err)
	}
	return nil
}

func randomID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("userbot: random id: %v", err))
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
}
