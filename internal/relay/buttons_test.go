package relay

import (
	"testing"

	"seriesrelay/pkg/message"
)

var testDownload = []string{"download", "⬇️", "get", "links"}

func TestIsSeasonLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  bool
	}{
		{"Season 1", true},
		{"season  12", true},
		{"S01", true},
		{"s3", true},
		{"SEASON 2 COMPLETE", true},
		{"1080P HEVC", true},
		{"720p x265", true},
		{"Download Links", false},
		{"Send All", false},
		{"Next", false},
		{"HEVC", false}, // quality marker without digits
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			if got := isSeasonLabel(tt.label); got != tt.want {
				t.Fatalf("isSeasonLabel(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestMatchKeyword(t *testing.T) {
	t.Parallel()

	if !matchKeyword("⬇️ DOWNLOAD LINKS ⬇️", testDownload) {
		t.Fatal("should match download keywords case-insensitively")
	}
	if matchKeyword("Season 4", testDownload) {
		t.Fatal("season label should not match download keywords")
	}
}

func TestSeasonButtons_SkipsDownloadEntryPoint(t *testing.T) {
	t.Parallel()

	msg := message.Message{Buttons: [][]message.Button{
		{{Label: "⬇️ Download Links", Data: []byte("dl")}},
		{{Label: "Season 1", Data: []byte("s1")}, {Label: "Season 2", Data: []byte("s2")}},
	}}

	got := seasonButtons(msg, testDownload)
	if len(got) != 2 {
		t.Fatalf("seasonButtons = %d, want 2", len(got))
	}
	if got[0].Label != "Season 1" || got[1].Label != "Season 2" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestButtonByLabel(t *testing.T) {
	t.Parallel()

	msg := message.Message{Buttons: [][]message.Button{
		{{Label: "Season 1", Data: []byte("s1")}},
		{{Label: "  season 2  ", Data: []byte("s2")}},
	}}

	b, ok := buttonByLabel(msg, "Season 2")
	if !ok || string(b.Data) != "s2" {
		t.Fatalf("buttonByLabel = %+v, %v; want the s2 button", b, ok)
	}
	if _, ok := buttonByLabel(msg, "Season 3"); ok {
		t.Fatal("missing label should not match")
	}
}

func TestBotRefs(t *testing.T) {
	t.Parallel()

	msg := message.Message{
		Buttons: [][]message.Button{
			{{Label: "Get Files", URL: "https://t.me/file_bot?start=abc"}},
			{{Label: "Channel", URL: "https://t.me/some_channel"}},
		},
		Links: []message.Link{
			{URL: "https://t.me/file_bot?start=abc"}, // duplicate of the button
			{URL: "https://t.me/other_bot?start=xyz"},
			{URL: "https://t.me/bare_bot"}, // no param, still a bot
		},
	}

	got := botRefs(msg)
	if len(got) != 3 {
		t.Fatalf("botRefs = %d, want 3 (dedupe + skip plain channel)", len(got))
	}
	if got[0].Username != "file_bot" || got[0].StartParam != "abc" {
		t.Fatalf("got[0] = %+v", got[0])
	}
	if got[1].Username != "other_bot" || got[1].StartParam != "xyz" {
		t.Fatalf("got[1] = %+v", got[1])
	}
	if got[2].Username != "bare_bot" || got[2].StartParam != "" {
		t.Fatalf("got[2] = %+v", got[2])
	}
}

func TestChannelRefs(t *testing.T) {
	t.Parallel()

	msg := message.Message{
		Text: "New series added",
		Links: []message.Link{
			{Label: "Watch", URL: "https://t.me/series_one"},
			{URL: "https://t.me/+PrivInvite1"},
			{URL: "https://t.me/file_bot?start=abc"}, // deep links are not channels
			{URL: "https://t.me/plain_bot"},          // bot usernames are not channels
			{URL: "https://example.com/nope"},
			{URL: "https://t.me/series_one"}, // duplicate
		},
	}

	got := channelRefs(msg)
	if len(got) != 2 {
		t.Fatalf("channelRefs = %d, want 2: %+v", len(got), got)
	}
	if got[0].Username != "series_one" {
		t.Fatalf("got[0] = %+v", got[0])
	}
	if got[1].InviteHash != "PrivInvite1" {
		t.Fatalf("got[1] = %+v", got[1])
	}
}
