package message

import "fmt"

// PeerKind distinguishes the Telegram peer flavors the relay touches.
type PeerKind string

const (
	PeerUser    PeerKind = "user"
	PeerChat    PeerKind = "chat"
	PeerChannel PeerKind = "channel"
)

// Peer identifies a resolved Telegram peer. AccessHash is only meaningful
// for users and channels and is kept alongside the ID so API calls can be
// made without another resolve round-trip.
type Peer struct {
	Kind       PeerKind `json:"kind"`
	ID         int64    `json:"id"`
	AccessHash int64    `json:"-"`
	Username   string   `json:"username,omitempty"`
	Title      string   `json:"title,omitempty"`
	Bot        bool     `json:"bot,omitempty"`
}

// Name returns the best human-readable handle for logs and status output.
func (p Peer) Name() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.Title != "" {
		return p.Title
	}
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}

// Zero reports whether the peer is unset.
func (p Peer) Zero() bool { return p.ID == 0 }
