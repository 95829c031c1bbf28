package header

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// escapePrefixLen bounds how much of an undecodable fragment is logged.
const escapePrefixLen = 40

var (
	errNoCharset      = errors.New("no charset declared")
	errUnknownCharset = errors.New("unknown charset")
	errInvalidBytes   = errors.New("invalid byte sequence")

	encodedWordRE = regexp.MustCompile(`=\?([^?\s]+)\?([bBqQ])\?([^?\s]*)\?=`)
)

// Fragment is one piece of a header value. Encoded fragments carry the raw
// bytes of an RFC 2047 encoded word together with its declared charset.
type Fragment struct {
	Text    string
	Raw     []byte
	Charset string
	Encoded bool
}

// Split breaks a header value into plain and encoded fragments. Whitespace
// between two adjacent encoded words is dropped, and adjacent encoded words
// with the same charset are merged so multi-byte sequences split across
// words decode as one.
func Split(s string) []Fragment {
	var out []Fragment
	last := 0
	prevEncoded := false

	for _, m := range encodedWordRE.FindAllStringSubmatchIndex(s, -1) {
		between := s[last:m[0]]
		word := s[m[0]:m[1]]
		charset := s[m[2]:m[3]]
		enc := s[m[4]:m[5]]
		payload := s[m[6]:m[7]]

		raw, err := decodeWord(enc, payload)
		if err != nil {
			out = appendText(out, between+word)
			last = m[1]
			prevEncoded = false
			continue
		}

		if between != "" && !(prevEncoded && strings.TrimSpace(between) == "") {
			out = appendText(out, between)
		}
		if i := strings.IndexByte(charset, '*'); i >= 0 {
			charset = charset[:i]
		}
		out = appendEncoded(out, raw, charset)
		last = m[1]
		prevEncoded = true
	}

	if last < len(s) {
		out = appendText(out, s[last:])
	}
	return out
}

func appendText(out []Fragment, s string) []Fragment {
	if n := len(out); n > 0 && !out[n-1].Encoded {
		out[n-1].Text += s
		return out
	}
	return append(out, Fragment{Text: s})
}

func appendEncoded(out []Fragment, raw []byte, charset string) []Fragment {
	if n := len(out); n > 0 && out[n-1].Encoded && strings.EqualFold(out[n-1].Charset, charset) {
		out[n-1].Raw = append(out[n-1].Raw, raw...)
		return out
	}
	return append(out, Fragment{Raw: append([]byte(nil), raw...), Charset: charset, Encoded: true})
}

// rawCharset is not one of the charsets mime handles itself, so every word
// is handed to CharsetReader, which returns the bytes unchanged. Charset
// conversion is left to the strategy list.
const rawCharset = "x-raw-bytes"

var rawWordDecoder = &mime.WordDecoder{
	CharsetReader: func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	},
}

// decodeWord undoes the B or Q transfer encoding of one encoded word.
func decodeWord(enc, payload string) ([]byte, error) {
	if enc == "B" || enc == "b" {
		payload = padBase64(payload)
	}
	s, err := rawWordDecoder.Decode("=?" + rawCharset + "?" + enc + "?" + payload + "?=")
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// padBase64 restores padding that some mailers leave off.
func padBase64(s string) string {
	s = strings.TrimRight(s, "=")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return s
}

// Strategy is one attempt at turning fragment bytes into text.
type Strategy struct {
	Name   string
	Decode func(raw []byte, charset string) (string, error)
}

// DefaultStrategies returns the fallback order used for encoded fragments:
// the declared charset, strict UTF-8, then lossy Latin-1.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "declared", Decode: decodeDeclared},
		{Name: "utf-8", Decode: decodeUTF8},
		{Name: "latin-1", Decode: decodeLatin1},
	}
}

// LookupCharset resolves a charset label through the WHATWG index first and
// the IANA registry second.
func LookupCharset(label string) (encoding.Encoding, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return nil, errNoCharset
	}
	if enc, err := htmlindex.Get(label); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownCharset, label)
}

func decodeDeclared(raw []byte, charset string) (string, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(raw, utf8.RuneError) {
		return "", fmt.Errorf("%w for %s", errInvalidBytes, charset)
	}
	return string(out), nil
}

func decodeUTF8(raw []byte, _ string) (string, error) {
	if !utf8.Valid(raw) {
		return "", errInvalidBytes
	}
	return string(raw), nil
}

func decodeLatin1(raw []byte, _ string) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decoder decodes RFC 2047 header values and never fails: every fragment
// ends up as some string, in the worst case an escaped byte literal.
type Decoder struct {
	Strategies []Strategy
	Logger     *slog.Logger
}

// NewDecoder returns a Decoder with the default fallback strategies.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{Strategies: DefaultStrategies(), Logger: logger}
}

// Decode strips line breaks from raw and decodes every encoded word in it.
func (d *Decoder) Decode(raw string) string {
	cleaned := StripLineBreaks(raw)
	if cleaned == "" {
		return ""
	}

	var sb strings.Builder
	for _, frag := range Split(cleaned) {
		if !frag.Encoded {
			sb.WriteString(frag.Text)
			continue
		}
		sb.WriteString(d.decodeFragment(frag))
	}
	return sb.String()
}

// DecodeValue resolves v with ToPlain and then decodes it.
func (d *Decoder) DecodeValue(v Value) string {
	return d.Decode(ToPlain(v))
}

func (d *Decoder) decodeFragment(frag Fragment) string {
	reasons := make([]string, 0, len(d.Strategies))
	for _, s := range d.Strategies {
		out, err := s.Decode(frag.Raw, frag.Charset)
		if err == nil {
			return out
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name, err))
	}

	prefix := frag.Raw
	if len(prefix) > escapePrefixLen {
		prefix = prefix[:escapePrefixLen]
	}
	if d.Logger != nil {
		d.Logger.Warn("decode header: all charsets failed", "charset", frag.Charset, "reason", strings.Join(reasons, "; "))
		d.Logger.Warn("decode header: outputting raw bytes", "bytes", Escape(prefix))
	}
	return Escape(frag.Raw)
}

// Escape renders b with printable ASCII kept and every other byte written
// as \xNN.
func Escape(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\x%02x`, c)
		}
	}
	return sb.String()
}
