// Package message defines the channel-agnostic message, peer, and keyboard
// types shared by the userbot client, the relay engine, and the control bot.
package message

import "time"

// MediaKind classifies forwardable media.
type MediaKind string

const (
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
)

// Media describes the media payload of a message.
type Media struct {
	Kind     MediaKind `json:"kind"`
	FileName string    `json:"file_name,omitempty"`
	MIMEType string    `json:"mime_type,omitempty"`
	Size     int64     `json:"size"`
}

// Button is a single inline keyboard button. Exactly one of URL or Data is
// set: URL buttons open links, Data buttons trigger bot callbacks.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
	Data  []byte `json:"data,omitempty"`
}

// IsURL reports whether the button opens a link rather than a callback.
func (b Button) IsURL() bool { return b.URL != "" }

// Link is a hyperlink extracted from message text, entities, or keyboard
// buttons. Label carries the visible text when one exists.
type Link struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// Message is a normalized Telegram message as seen by the relay engine.
type Message struct {
	ID       int        `json:"id"`
	Date     time.Time  `json:"date"`
	EditDate time.Time  `json:"edit_date,omitzero"`
	Outgoing bool       `json:"outgoing,omitempty"`
	Text     string     `json:"text,omitempty"`
	Buttons  [][]Button `json:"buttons,omitempty"`
	Media    *Media     `json:"media,omitempty"`
	Links    []Link     `json:"links,omitempty"`
}

// HasButtons reports whether the message carries an inline keyboard.
func (m *Message) HasButtons() bool {
	for _, row := range m.Buttons {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// HasMedia reports whether the message carries forwardable media.
func (m *Message) HasMedia() bool { return m.Media != nil }

// Stamp returns the message's last-modified time: the edit date when the
// message was edited, otherwise the send date. Used for edit-aware dedupe.
func (m *Message) Stamp() time.Time {
	if !m.EditDate.IsZero() {
		return m.EditDate
	}
	return m.Date
}

// FlatButtons returns all buttons in reading order.
func (m *Message) FlatButtons() []Button {
	var out []Button
	for _, row := range m.Buttons {
		out = append(out, row...)
	}
	return out
}
