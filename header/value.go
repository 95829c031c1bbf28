// Package header turns raw mail header values into plain, single-line text.
package header

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

// Kind identifies which representation a Value carries.
type Kind int

const (
	KindNone Kind = iota
	KindText
	KindBytes
	KindAddresses
)

var errNilAddress = errors.New("nil address in list")

// Value is a header field as found in a message: already text, raw bytes
// that still need a character set, or a parsed address list.
type Value struct {
	kind  Kind
	text  string
	raw   []byte
	addrs []*mail.Address
}

// Text wraps a header value that is already a string.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Bytes wraps a header value whose bytes are not known to be UTF-8.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: b}
}

// Addresses wraps a parsed address list.
func Addresses(list []*mail.Address) Value {
	return Value{kind: KindAddresses, addrs: list}
}

// Kind returns the representation held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether v holds nothing, i.e. the header was absent.
func (v Value) IsZero() bool {
	return v.kind == KindNone
}

// ToPlain resolves v into a single string. Downstream code only deals with
// the result and never looks at the original representation again.
func ToPlain(v Value) string {
	switch v.kind {
	case KindText:
		return v.text
	case KindBytes:
		return strings.ToValidUTF8(string(v.raw), string(utf8.RuneError))
	case KindAddresses:
		s, err := renderAddresses(v.addrs)
		if err != nil {
			return ""
		}
		return s
	default:
		return ""
	}
}

// renderAddresses formats addresses without RFC 2047 re-encoding of names.
func renderAddresses(addrs []*mail.Address) (string, error) {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			return "", errNilAddress
		}
		if a.Name != "" {
			parts = append(parts, quoteName(a.Name)+" <"+a.Address+">")
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", "), nil
}

// nameSpecials are the characters that force a display name into a quoted
// string.
const nameSpecials = `()<>@,:;."[]\`

func quoteName(name string) string {
	if !strings.ContainsAny(name, nameSpecials) {
		return name
	}
	name = strings.ReplaceAll(name, `\`, `\\`)
	name = strings.ReplaceAll(name, `"`, `\"`)
	return `"` + name + `"`
}

// StripLineBreaks drops every carriage return and turns every line feed into
// a single space so the value renders on one line.
func StripLineBreaks(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}
