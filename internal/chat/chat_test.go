package chat

import (
	"testing"
	"time"
)

func TestStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSending, StatusSent, true},
		{StatusSending, StatusDelivered, true},
		{StatusSending, StatusSeen, true},
		{StatusSending, StatusFailed, true},
		{StatusSending, StatusBlocked, true},
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusSeen, true},
		{StatusDelivered, StatusSeen, true},
		{StatusSeen, StatusDelivered, false},
		{StatusDelivered, StatusSent, false},
		{StatusSent, StatusSending, false},
		{StatusSent, StatusFailed, false},
		{StatusSent, StatusBlocked, false},
		{StatusFailed, StatusSending, false},
		{StatusFailed, StatusSent, false},
		{StatusBlocked, StatusSent, false},
		{StatusSent, StatusSent, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Errorf("CanAdvanceTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusAdvanceNeverRegresses(t *testing.T) {
	s := StatusSending
	for _, next := range []Status{StatusDelivered, StatusSent, StatusFailed, StatusSeen, StatusDelivered} {
		s = s.Advance(next)
	}
	if s != StatusSeen {
		t.Errorf("final status = %s, want seen", s)
	}
}

func TestParseStatus(t *testing.T) {
	if ParseStatus("") != StatusSent {
		t.Error("empty status should default to sent")
	}
	if ParseStatus("blocked") != StatusBlocked {
		t.Error("blocked not parsed")
	}
	if ParseStatus("sending") != StatusSent {
		t.Error("a server ack never reports sending")
	}
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Key
	}{
		{"inbound direct", Message{SenderID: "2", ReceiverID: "1"}, Direct("2")},
		{"outbound direct", Message{SenderID: "1", ReceiverID: "2"}, Direct("2")},
		{"group", Message{SenderID: "2", ReceiverID: "1", GroupID: "9"}, Group("9")},
		{"self to self", Message{SenderID: "1", ReceiverID: "1"}, Key{}},
		{"missing receiver", Message{SenderID: "1"}, Key{}},
		{"missing both", Message{}, Key{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFor(tt.msg, "1"); got != tt.want {
				t.Errorf("KeyFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	for _, k := range []Key{Direct("42"), Group("7")} {
		got, ok := ParseKey(k.String())
		if !ok || got != k {
			t.Errorf("ParseKey(%q) = %v, %v", k.String(), got, ok)
		}
	}
	for _, bad := range []string{"", "direct:", "channel:1", "nocolon"} {
		if _, ok := ParseKey(bad); ok {
			t.Errorf("ParseKey(%q) succeeded", bad)
		}
	}
}

func TestSameContent(t *testing.T) {
	a := Message{SenderID: "1", ReceiverID: "2", Kind: ContentText, Payload: "hi"}
	b := a
	b.ID = "99"
	if !SameContent(a, b) {
		t.Error("identical content should match regardless of id")
	}
	b.Payload = "hi!"
	if SameContent(a, b) {
		t.Error("different payload should not match")
	}
	c := a
	c.GroupID = "5"
	if SameContent(a, c) {
		t.Error("different target should not match")
	}
}

func TestClassifyFile(t *testing.T) {
	tests := map[string]ContentKind{
		"/uploads/a.PNG":         ContentImage,
		"/uploads/a.jpg?size=2":  ContentImage,
		"/uploads/report.pdf":    ContentFile,
		"https://x/y.webp#frag":  ContentImage,
		"https://x/archive.gifs": ContentFile,
	}
	for url, want := range tests {
		if got := ClassifyFile(url); got != want {
			t.Errorf("ClassifyFile(%q) = %s, want %s", url, got, want)
		}
	}
}

func TestPreviewText(t *testing.T) {
	if got := (Message{Kind: ContentText, Payload: "one\ntwo"}).PreviewText(); got != "one" {
		t.Errorf("PreviewText = %q, want first line", got)
	}
	if got := (Message{Kind: ContentSticker, Payload: "/s.png"}).PreviewText(); got != "[sticker]" {
		t.Errorf("PreviewText = %q", got)
	}
}

func TestCloneIsolatesReactions(t *testing.T) {
	m := Message{Reactions: map[string]string{"1": "👍"}}
	c := m.Clone()
	c.Reactions["2"] = "❤️"
	if len(m.Reactions) != 1 {
		t.Error("Clone shares reactions map")
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []string{
		"2024-03-01T10:00:00",
		"2024-03-01T10:00:00.000000",
		"2024-03-01 10:00:00",
		"2024-03-01T10:00:00Z",
		"2024-03-01T17:00:00+07:00",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseTimestamp(in, loc)
			if err != nil {
				t.Fatalf("ParseTimestamp error = %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
			if got.Location() != loc {
				t.Errorf("location = %v, want %v", got.Location(), loc)
			}
		})
	}

	if _, err := ParseTimestamp("yesterday", loc); err == nil {
		t.Error("expected error for garbage timestamp")
	}
}

func TestContactName(t *testing.T) {
	if (Contact{ID: "3"}).Name() != "User 3" {
		t.Error("fallback name")
	}
	if (Contact{ID: "3", Username: "bob"}).Name() != "bob" {
		t.Error("username name")
	}
	if (Contact{ID: "3", Username: "bob", DisplayName: "Bob B"}).Name() != "Bob B" {
		t.Error("display name")
	}
}
