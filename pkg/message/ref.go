package message

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrNotTelegramLink is returned by ParseRef for URLs outside t.me.
var ErrNotTelegramLink = errors.New("message: not a telegram link")

// Ref is an unresolved reference to a Telegram resource: a public channel
// or bot by username, a private channel by invite hash, optionally narrowed
// to a single post or carrying a bot deep-link start parameter.
type Ref struct {
	Username   string `json:"username,omitempty"`
	InviteHash string `json:"invite_hash,omitempty"`
	MessageID  int    `json:"message_id,omitempty"`
	StartParam string `json:"start_param,omitempty"`
}

// Zero reports whether the reference is empty.
func (r Ref) Zero() bool { return r.Username == "" && r.InviteHash == "" }

// Key returns a stable identity string used for dedupe and persistence.
func (r Ref) Key() string {
	if r.InviteHash != "" {
		return "t.me/+" + r.InviteHash
	}
	return "t.me/" + strings.ToLower(r.Username)
}

// String renders the reference back as a t.me link.
func (r Ref) String() string {
	switch {
	case r.InviteHash != "":
		return "https://t.me/+" + r.InviteHash
	case r.StartParam != "":
		return fmt.Sprintf("https://t.me/%s?start=%s", r.Username, r.StartParam)
	case r.MessageID != 0:
		return fmt.Sprintf("https://t.me/%s/%d", r.Username, r.MessageID)
	default:
		return "https://t.me/" + r.Username
	}
}

// ParseRef parses @usernames, t.me and telegram.me links in all their
// common shapes: public channels, private invites (+hash and joinchat),
// post links, and bot deep links with a start parameter.
func ParseRef(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, ErrNotTelegramLink
	}

	if strings.HasPrefix(s, "@") {
		name := strings.TrimPrefix(s, "@")
		if !validUsername(name) {
			return Ref{}, fmt.Errorf("message: invalid username %q", raw)
		}
		return Ref{Username: name}, nil
	}

	// Normalize bare t.me/... into a parseable URL.
	if strings.HasPrefix(s, "t.me/") || strings.HasPrefix(s, "telegram.me/") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return Ref{}, fmt.Errorf("message: parsing link %q: %w", raw, err)
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != "t.me" && host != "telegram.me" {
		return Ref{}, ErrNotTelegramLink
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return Ref{}, ErrNotTelegramLink
	}

	switch {
	case strings.HasPrefix(parts[0], "+"):
		hash := strings.TrimPrefix(parts[0], "+")
		if hash == "" {
			return Ref{}, fmt.Errorf("message: empty invite hash in %q", raw)
		}
		return Ref{InviteHash: hash}, nil

	case parts[0] == "joinchat":
		if len(parts) < 2 || parts[1] == "" {
			return Ref{}, fmt.Errorf("message: empty invite hash in %q", raw)
		}
		return Ref{InviteHash: parts[1]}, nil
	}

	if !validUsername(parts[0]) {
		return Ref{}, fmt.Errorf("message: invalid username in %q", raw)
	}

	ref := Ref{Username: parts[0], StartParam: u.Query().Get("start")}
	if len(parts) > 1 {
		if id, err := strconv.Atoi(parts[1]); err == nil {
			ref.MessageID = id
		}
	}
	return ref, nil
}

func validUsername(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
