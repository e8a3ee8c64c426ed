package relay

import (
	"regexp"
	"strings"

	"seriesrelay/pkg/message"
)

var (
	seasonPattern  = regexp.MustCompile(`(?i)(season\s*\d+|\bs\d+\b)`)
	qualityPattern = regexp.MustCompile(`(?i)(2160p|1080p|720p|480p|x265|x264|hevc)`)
)

// matchKeyword reports whether the label contains any of the keywords,
// case-insensitively.
func matchKeyword(label string, keywords []string) bool {
	l := strings.ToLower(label)
	for _, kw := range keywords {
		if strings.Contains(l, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// isSeasonLabel recognizes buttons that select a season or a quality
// variant of one: "Season 2", "S01", "1080P HEVC", and similar.
func isSeasonLabel(label string) bool {
	if seasonPattern.MatchString(label) {
		return true
	}
	return qualityPattern.MatchString(label) && strings.ContainsAny(label, "0123456789")
}

// findButton returns the first button whose label matches the keywords.
func findButton(msg message.Message, keywords []string) (message.Button, bool) {
	for _, b := range msg.FlatButtons() {
		if matchKeyword(b.Label, keywords) {
			return b, true
		}
	}
	return message.Button{}, false
}

// seasonButtons returns all buttons that look like season selectors,
// preserving keyboard order.
func seasonButtons(msg message.Message, downloadKeywords []string) []message.Button {
	var out []message.Button
	for _, b := range msg.FlatButtons() {
		// A "Download Links" style button is an entry point, not a season.
		if matchKeyword(b.Label, downloadKeywords) && !seasonPattern.MatchString(b.Label) {
			continue
		}
		if isSeasonLabel(b.Label) {
			out = append(out, b)
		}
	}
	return out
}

// buttonByLabel finds a button by its exact label, ignoring case and
// surrounding whitespace.
func buttonByLabel(msg message.Message, label string) (message.Button, bool) {
	want := strings.TrimSpace(strings.ToLower(label))
	for _, b := range msg.FlatButtons() {
		if strings.TrimSpace(strings.ToLower(b.Label)) == want {
			return b, true
		}
	}
	return message.Button{}, false
}

// isBotUsername reports whether a username can only belong to a bot.
// Telegram reserves the "bot" suffix for bot accounts.
func isBotUsername(username string) bool {
	return strings.HasSuffix(strings.ToLower(username), "bot")
}

// botRefs extracts file-bot deep links from a message's keyboard and text
// links: t.me/<bot>?start=<param> in either place.
func botRefs(msg message.Message) []message.Ref {
	var out []message.Ref
	seen := make(map[string]bool)

	add := func(raw string) {
		ref, err := message.ParseRef(raw)
		if err != nil {
			return
		}
		// Bot usernames must end in "bot"; a bare bot link without a
		// start parameter still gets a plain /start.
		if ref.StartParam == "" && !isBotUsername(ref.Username) {
			return
		}
		key := ref.Username + "?" + ref.StartParam
		if !seen[key] {
			seen[key] = true
			out = append(out, ref)
		}
	}

	for _, b := range msg.FlatButtons() {
		if b.IsURL() {
			add(b.URL)
		}
	}
	for _, l := range msg.Links {
		add(l.URL)
	}
	return out
}

// channelRefs extracts series-channel references from a message: plain
// channel links in text entities and URL buttons, excluding bot deep links.
func channelRefs(msg message.Message) []message.Ref {
	var out []message.Ref
	seen := make(map[string]bool)

	add := func(raw string) {
		ref, err := message.ParseRef(raw)
		if err != nil || ref.StartParam != "" || isBotUsername(ref.Username) {
			return
		}
		if !seen[ref.Key()] {
			seen[ref.Key()] = true
			out = append(out, ref)
		}
	}

	for _, l := range msg.Links {
		add(l.URL)
	}
	for _, b := range msg.FlatButtons() {
		if b.IsURL() {
			add(b.URL)
		}
	}
	return out
}
