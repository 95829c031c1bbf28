package mailmsg

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dhcgn/mail-grep/header"
	"github.com/dhcgn/mail-grep/model"
)

// InvalidHeader replaces the value of a header field that could not be read.
const InvalidHeader = "[INVALID HEADER]"

// HeaderFields lists the fields turned into searchable header lines, in order.
var HeaderFields = []string{"Subject", "From", "To", "Date"}

// Line is one searchable line together with the part type it came from.
type Line struct {
	Text string
	Part string
}

// HeaderLines renders the searchable header fields as "Name: value" lines.
// A field that fails is replaced by the invalid marker without affecting
// the others.
func HeaderLines(msg *Message, dec *header.Decoder, logger *slog.Logger) []string {
	out := make([]string, 0, len(HeaderFields))
	for _, name := range HeaderFields {
		value, present, err := headerLine(msg, dec, name)
		if err != nil {
			if logger != nil {
				logger.Warn("could not parse header", "field", name, "err", err)
			}
			out = append(out, name+": "+InvalidHeader)
			continue
		}
		if !present {
			continue
		}
		out = append(out, name+": "+value)
	}
	return out
}

func headerLine(msg *Message, dec *header.Decoder, name string) (value string, present bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	v := msg.Header(name)
	if v.IsZero() {
		return "", false, nil
	}
	return header.StripLineBreaks(dec.DecodeValue(v)), true, nil
}

// BodyLines returns the searchable lines of every text part. HTML parts
// produce three views: the raw markup, the visible text segments and all
// visible text concatenated.
func BodyLines(msg *Message) []Line {
	var out []Line
	for _, p := range msg.TextParts() {
		if len(p.Body) == 0 {
			continue
		}
		text := DecodePayload(p)
		if p.ContentType == model.PartHTML {
			out = append(out, htmlViews(text)...)
			continue
		}
		for _, l := range SplitLines(text) {
			if strings.TrimSpace(l) != "" {
				out = append(out, Line{Text: l, Part: p.ContentType})
			}
		}
	}
	return out
}

// DecodePayload converts a part body to text using its declared charset,
// defaulting to UTF-8. Undecodable input is replaced rather than rejected.
func DecodePayload(p *Part) string {
	if p.Converted || p.Charset == "" {
		return toValidUTF8(p.Body)
	}

	enc, err := header.LookupCharset(p.Charset)
	if err != nil {
		return toValidUTF8(p.Body)
	}
	out, err := enc.NewDecoder().Bytes(p.Body)
	if err != nil {
		return toValidUTF8(p.Body)
	}
	return string(out)
}

func toValidUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// SplitLines splits s on every line boundary, dropping empty segments.
func SplitLines(s string) []string {
	return strings.FieldsFunc(s, isLineBreak)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
