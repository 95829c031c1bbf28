package mailmsg

import (
	"strings"

	"github.com/dhcgn/mail-grep/header"
	"github.com/dhcgn/mail-grep/model"
)

// LinkScheme is the URL scheme Apple Mail registers for opening a message
// by its Message-ID.
const LinkScheme = "message:"

// NewProfile derives the identifying fields of msg.
func NewProfile(msg *Message, dec *header.Decoder) *model.Profile {
	id := dec.DecodeValue(msg.Header("Message-ID"))

	rawDate := header.ToPlain(msg.Header("Date"))
	p := &model.Profile{
		MessageID: id,
		Link:      Link(id),
		Subject:   dec.DecodeValue(msg.Header("Subject")),
		From:      dec.DecodeValue(msg.Header("From")),
		To:        dec.DecodeValue(msg.Header("To")),
	}
	if t, ok := ParseDate(rawDate); ok {
		p.DateSortKey = &t
		p.DateDisplay = t.Format(DisplayLayout)
	} else {
		p.DateDisplay = dec.Decode(rawDate)
	}
	return p
}

// Link builds the deep link for a Message-ID, adding angle brackets when
// they are missing.
func Link(messageID string) string {
	s := strings.TrimSpace(messageID)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "<") {
		s = "<" + s + ">"
	}
	return LinkScheme + escapeAll(s)
}

// escapeAll percent-encodes every byte outside the RFC 3986 unreserved set.
func escapeAll(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
