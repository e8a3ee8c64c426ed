package userbot

import (
	"time"
	"unicode/utf16"

	"github.com/gotd/td/tg"

	"seriesrelay/pkg/message"
)

// convertMessage normalizes an MTProto message into the domain shape used
// by the relay engine.
func convertMessage(m *tg.Message) message.Message {
	out := message.Message{
		ID:       m.ID,
		Date:     time.Unix(int64(m.Date), 0),
		Outgoing: m.Out,
		Text:     m.Message,
	}
	if m.EditDate != 0 {
		out.EditDate = time.Unix(int64(m.EditDate), 0)
	}

	out.Buttons = convertKeyboard(m.ReplyMarkup)
	out.Links = extractLinks(m.Message, m.Entities)
	out.Media = convertMedia(m.Media)
	return out
}

func convertKeyboard(markup tg.ReplyMarkupClass) [][]message.Button {
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		return nil
	}

	rows := make([][]message.Button, 0, len(inline.Rows))
	for _, row := range inline.Rows {
		var buttons []message.Button
		for _, btn := range row.Buttons {
			switch b := btn.(type) {
			case *tg.KeyboardButtonCallback:
				buttons = append(buttons, message.Button{Label: b.Text, Data: b.Data})
			case *tg.KeyboardButtonURL:
				buttons = append(buttons, message.Button{Label: b.Text, URL: b.URL})
			}
		}
		if len(buttons) > 0 {
			rows = append(rows, buttons)
		}
	}
	return rows
}

// extractLinks pulls hyperlinks out of message entities. Entity offsets are
// in UTF-16 code units, so the text is sliced in that encoding.
func extractLinks(text string, entities []tg.MessageEntityClass) []message.Link {
	if len(entities) == 0 {
		return nil
	}

	units := utf16.Encode([]rune(text))
	slice := func(off, length int) string {
		if off < 0 || off+length > len(units) {
			return ""
		}
		return string(utf16.Decode(units[off : off+length]))
	}

	var links []message.Link
	for _, entity := range entities {
		switch e := entity.(type) {
		case *tg.MessageEntityTextURL:
			links = append(links, message.Link{Label: slice(e.Offset, e.Length), URL: e.URL})
		case *tg.MessageEntityURL:
			url := slice(e.Offset, e.Length)
			if url != "" {
				links = append(links, message.Link{URL: url})
			}
		}
	}
	return links
}

func convertMedia(media tg.MessageMediaClass) *message.Media {
	md, ok := media.(*tg.MessageMediaDocument)
	if !ok {
		return nil
	}
	doc, ok := md.Document.(*tg.Document)
	if !ok {
		return nil
	}

	out := &message.Media{
		Kind:     message.MediaDocument,
		MIMEType: doc.MimeType,
		Size:     doc.Size,
	}
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeVideo:
			out.Kind = message.MediaVideo
		case *tg.DocumentAttributeAudio:
			out.Kind = message.MediaAudio
		case *tg.DocumentAttributeFilename:
			out.FileName = a.FileName
		}
	}
	return out
}
