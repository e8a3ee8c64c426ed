package userbot

import (
	"testing"
	"time"

	"github.com/gotd/td/tg"

	"seriesrelay/pkg/message"
)

func TestConvertMessage_Basics(t *testing.T) {
	t.Parallel()

	in := &tg.Message{
		ID:       42,
		Date:     1750000000,
		EditDate: 1750000600,
		Message:  "Season 1 added",
	}

	got := convertMessage(in)
	if got.ID != 42 {
		t.Fatalf("ID = %d, want 42", got.ID)
	}
	if !got.Date.Equal(time.Unix(1750000000, 0)) {
		t.Fatalf("Date = %v", got.Date)
	}
	if !got.EditDate.Equal(time.Unix(1750000600, 0)) {
		t.Fatalf("EditDate = %v", got.EditDate)
	}
	if !got.Stamp().Equal(got.EditDate) {
		t.Fatal("Stamp should follow EditDate for edited messages")
	}
}

func TestConvertKeyboard(t *testing.T) {
	t.Parallel()

	markup := &tg.ReplyInlineMarkup{
		Rows: []tg.KeyboardButtonRow{
			{Buttons: []tg.KeyboardButtonClass{
				&tg.KeyboardButtonCallback{Text: "Season 1", Data: []byte("s1")},
				&tg.KeyboardButtonCallback{Text: "Season 2", Data: []byte("s2")},
			}},
			{Buttons: []tg.KeyboardButtonClass{
				&tg.KeyboardButtonURL{Text: "Download Links", URL: "https://t.me/file_bot?start=x"},
			}},
		},
	}

	rows := convertKeyboard(markup)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][1].Label != "Season 2" || string(rows[0][1].Data) != "s2" {
		t.Fatalf("rows[0][1] = %+v", rows[0][1])
	}
	if !rows[1][0].IsURL() {
		t.Fatal("URL button should report IsURL")
	}
}

func TestConvertKeyboard_NotInline(t *testing.T) {
	t.Parallel()
	if got := convertKeyboard(&tg.ReplyKeyboardMarkup{}); got != nil {
		t.Fatalf("reply keyboards should be ignored, got %v", got)
	}
}

func TestExtractLinks_UTF16Offsets(t *testing.T) {
	t.Parallel()

	// The emoji occupies two UTF-16 code units, shifting later offsets.
	text := "🎬 Watch here and t.me/series_hub"
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityTextURL{Offset: 3, Length: 10, URL: "https://t.me/hidden_channel"},
		&tg.MessageEntityURL{Offset: 18, Length: 15},
	}

	links := extractLinks(text, entities)
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2", len(links))
	}
	if links[0].Label != "Watch here" || links[0].URL != "https://t.me/hidden_channel" {
		t.Fatalf("links[0] = %+v", links[0])
	}
	if links[1].URL != "t.me/series_hub" {
		t.Fatalf("links[1].URL = %q", links[1].URL)
	}
}

func TestExtractLinks_OutOfRange(t *testing.T) {
	t.Parallel()

	links := extractLinks("short", []tg.MessageEntityClass{
		&tg.MessageEntityURL{Offset: 3, Length: 50},
	})
	if len(links) != 0 {
		t.Fatalf("out-of-range entity should be dropped, got %v", links)
	}
}

func TestConvertMedia(t *testing.T) {
	t.Parallel()

	media := &tg.MessageMediaDocument{}
	media.Document = &tg.Document{
		MimeType: "video/x-matroska",
		Size:     734003200,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{},
			&tg.DocumentAttributeFilename{FileName: "show.s01e01.1080p.mkv"},
		},
	}

	got := convertMedia(media)
	if got == nil {
		t.Fatal("expected media")
	}
	if got.Kind != message.MediaVideo {
		t.Fatalf("Kind = %q, want video", got.Kind)
	}
	if got.FileName != "show.s01e01.1080p.mkv" {
		t.Fatalf("FileName = %q", got.FileName)
	}
	if got.Size != 734003200 {
		t.Fatalf("Size = %d", got.Size)
	}
}

func TestConvertMedia_NonDocument(t *testing.T) {
	t.Parallel()
	if got := convertMedia(&tg.MessageMediaPhoto{}); got != nil {
		t.Fatalf("photos are not forwardable media, got %+v", got)
	}
}
