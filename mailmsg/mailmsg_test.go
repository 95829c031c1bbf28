package mailmsg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/dhcgn/mail-grep/header"
	"github.com/dhcgn/mail-grep/model"
)

const plainMail = "Message-ID: <abc@example.com>\r\n" +
	"Date: Mon, 1 Jan 2024 10:00:00 +0900\r\n" +
	"From: =?UTF-8?B?5bGx55Sw?= <yamada@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: =?ISO-2022-JP?B?GyRCJEMkVRsoQg==?=\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"first line\r\n" +
	"\r\n" +
	"   \r\n" +
	"second line\r\n"

const multipartMail = "Message-ID: <multi@example.com>\n" +
	"Subject: multipart\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\n" +
	"\n" +
	"--XYZ\n" +
	"Content-Type: text/plain; charset=iso-8859-1\n" +
	"Content-Transfer-Encoding: quoted-printable\n" +
	"\n" +
	"caf=E9\n" +
	"--XYZ\n" +
	"Content-Type: text/html; charset=utf-8\n" +
	"\n" +
	"<html><head><title>T</title><style>p{}</style></head><body><p>Hello</p><p>World</p></body></html>\n" +
	"--XYZ\n" +
	"Content-Type: application/octet-stream\n" +
	"Content-Transfer-Encoding: base64\n" +
	"\n" +
	"AAEC\n" +
	"--XYZ--\n"

func mustParse(t *testing.T, data string) *Message {
	t.Helper()
	msg, err := Parse([]byte(data), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return msg
}

func TestParse_Plain(t *testing.T) {
	msg := mustParse(t, plainMail)
	if msg.Lenient {
		t.Error("expected strict parse")
	}
	if msg.Root.IsMultipart() {
		t.Error("expected single part")
	}
	if got := msg.Header("To").Kind(); got != header.KindAddresses {
		t.Errorf("To kind = %v, want addresses", got)
	}
	if got := msg.Header("Subject").Kind(); got != header.KindText {
		t.Errorf("Subject kind = %v, want text", got)
	}
	if !msg.Header("X-Missing").IsZero() {
		t.Error("absent header must be zero")
	}
}

func TestParse_Multipart(t *testing.T) {
	msg := mustParse(t, multipartMail)
	if !msg.Root.IsMultipart() {
		t.Fatal("expected multipart root")
	}
	if len(msg.Root.Children) != 3 {
		t.Fatalf("children = %d, want 3", len(msg.Root.Children))
	}
	parts := msg.TextParts()
	if len(parts) != 2 {
		t.Fatalf("TextParts() = %d, want 2", len(parts))
	}
	if parts[0].ContentType != "text/plain" || parts[1].ContentType != "text/html" {
		t.Errorf("TextParts() types = %s, %s", parts[0].ContentType, parts[1].ContentType)
	}
}

func TestParse_LenientHeader(t *testing.T) {
	data := "Subject: broken\nthis line is not a header\nFrom: a@example.com\n\nbody text\n"
	msg := mustParse(t, data)
	if !msg.Lenient {
		t.Error("expected lenient parse")
	}
	if got := header.ToPlain(msg.Header("Subject")); got != "broken" {
		t.Errorf("Subject = %q", got)
	}
	lines := BodyLines(msg)
	if len(lines) != 1 || lines[0].Text != "body text" {
		t.Errorf("BodyLines() = %+v", lines)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil, nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestHeaderLines(t *testing.T) {
	msg := mustParse(t, plainMail)
	got := HeaderLines(msg, header.NewDecoder(nil), nil)
	want := []string{
		"Subject: っふ",
		"From: 山田 <yamada@example.com>",
		"To: bob@example.com",
		"Date: Mon, 1 Jan 2024 10:00:00 +0900",
	}
	if len(got) != len(want) {
		t.Fatalf("HeaderLines() = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("HeaderLines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHeaderLines_SkipsAbsent(t *testing.T) {
	msg := mustParse(t, "Subject: only\n\nbody\n")
	got := HeaderLines(msg, header.NewDecoder(nil), nil)
	if len(got) != 1 || got[0] != "Subject: only" {
		t.Errorf("HeaderLines() = %q", got)
	}
}

func TestHeaderLines_InvalidField(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	msg := mustParse(t, "Subject: =?x?Q?a?=\nFrom: a@example.com\n\nbody\n")

	dec := header.NewDecoder(nil)
	dec.Strategies = []header.Strategy{{Name: "boom", Decode: func([]byte, string) (string, error) {
		panic("decoder exploded")
	}}}

	got := HeaderLines(msg, dec, logger)
	if len(got) != 2 {
		t.Fatalf("HeaderLines() = %q", got)
	}
	if got[0] != "Subject: "+InvalidHeader {
		t.Errorf("HeaderLines()[0] = %q", got[0])
	}
	if got[1] != "From: a@example.com" {
		t.Errorf("HeaderLines()[1] = %q", got[1])
	}
	if !strings.Contains(buf.String(), "field=Subject") {
		t.Errorf("expected warning naming the field, got %s", buf.String())
	}
}

func TestBodyLines_HTMLViews(t *testing.T) {
	src := "<html><body><p>Hello</p><p>World</p></body></html>"
	msg := mustParse(t, "Content-Type: text/html; charset=utf-8\n\n"+src)

	lines := BodyLines(msg)
	var raw, text, concat []string
	for _, l := range lines {
		switch l.Part {
		case model.PartHTML:
			raw = append(raw, l.Text)
		case model.PartHTMLTextOnly:
			text = append(text, l.Text)
		case model.PartHTMLConcat:
			concat = append(concat, l.Text)
		}
	}
	if len(raw) != 1 || raw[0] != src {
		t.Errorf("raw html = %q", raw)
	}
	if len(text) != 2 || text[0] != "Hello" || text[1] != "World" {
		t.Errorf("textonly = %q", text)
	}
	if len(concat) != 1 || concat[0] != "HelloWorld" {
		t.Errorf("concat = %q", concat)
	}
}

func TestBodyLines_Multipart(t *testing.T) {
	lines := BodyLines(mustParse(t, multipartMail))

	var plain []string
	var textOnly []string
	for _, l := range lines {
		switch l.Part {
		case model.PartPlain:
			plain = append(plain, l.Text)
		case model.PartHTMLTextOnly:
			textOnly = append(textOnly, l.Text)
		}
	}
	if len(plain) != 1 || plain[0] != "café" {
		t.Errorf("plain = %q", plain)
	}
	if len(textOnly) != 2 {
		t.Errorf("textonly = %q, title and style must be dropped", textOnly)
	}
}

func TestBodyLines_PlainSkipsBlank(t *testing.T) {
	lines := BodyLines(mustParse(t, plainMail))
	if len(lines) != 2 {
		t.Fatalf("BodyLines() = %+v", lines)
	}
	if lines[0].Text != "first line" || lines[1].Text != "second line" {
		t.Errorf("BodyLines() = %+v", lines)
	}
}

func TestDecodePayload_UnknownCharset(t *testing.T) {
	p := &Part{ContentType: "text/plain", Charset: "x-unknown", Body: []byte("ok\xff")}
	if got := DecodePayload(p); got != "ok�" {
		t.Errorf("DecodePayload() = %q", got)
	}

	p = &Part{ContentType: "text/plain", Charset: "shift_jis", Body: []byte{0x93, 0xfa, 0x96, 0x7b}}
	if got := DecodePayload(p); got != "日本" {
		t.Errorf("DecodePayload() = %q", got)
	}
}

func TestNewProfile(t *testing.T) {
	p := NewProfile(mustParse(t, plainMail), header.NewDecoder(nil))
	if p.MessageID != "<abc@example.com>" {
		t.Errorf("MessageID = %q", p.MessageID)
	}
	if p.Link != "message:%3Cabc%40example.com%3E" {
		t.Errorf("Link = %q", p.Link)
	}
	if p.DateSortKey == nil {
		t.Fatal("expected sort key")
	}
	if p.DateDisplay != "2024-01-01 10:00:00" {
		t.Errorf("DateDisplay = %q", p.DateDisplay)
	}
	if p.Subject != "っふ" {
		t.Errorf("Subject = %q", p.Subject)
	}
}

func TestNewProfile_BadDate(t *testing.T) {
	p := NewProfile(mustParse(t, "Date: sometime last week\nMessage-ID: id@host\n\nx\n"), header.NewDecoder(nil))
	if p.DateSortKey != nil {
		t.Error("unparsable date must not have a sort key")
	}
	if p.DateDisplay != "sometime last week" {
		t.Errorf("DateDisplay = %q", p.DateDisplay)
	}
	if p.Link != "message:%3Cid%40host%3E" {
		t.Errorf("Link = %q", p.Link)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{in: "Mon, 1 Jan 2024 10:00:00 +0900", ok: true},
		{in: "1 Jan 2024 10:00:00 +0000 (UTC)", ok: true},
		{in: "Mon, 1 Jan 2024 10:00:00 +9900", ok: true},
		{in: "Mon, 1 Jan 2024 10:00:00", ok: true},
		{in: "", ok: false},
		{in: "not a date", ok: false},
	}
	for _, tt := range tests {
		if _, ok := ParseDate(tt.in); ok != tt.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}
