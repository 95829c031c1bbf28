// Package mailmsg parses message bytes into a header set and a part tree and
// extracts the searchable lines of a message.
package mailmsg

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/dhcgn/mail-grep/header"
)

const defaultContentType = "text/plain"

var addressFields = map[string]bool{
	"from":     true,
	"to":       true,
	"cc":       true,
	"bcc":      true,
	"reply-to": true,
	"sender":   true,
}

// Part is one node of the MIME tree. Leaves carry a body; multipart nodes
// carry children.
type Part struct {
	ContentType string
	Charset     string
	Body        []byte
	Children    []*Part
	// Converted is false when the declared charset was not recognised while
	// reading, which leaves Body in its original encoding.
	Converted bool

	multipart bool
}

// IsMultipart reports whether p is a container node.
func (p *Part) IsMultipart() bool {
	return p.multipart
}

// Message is a parsed mail message.
type Message struct {
	Root *Part
	// Lenient is true when the strict parse failed and the best-effort
	// parser produced this message.
	Lenient bool

	header message.Header
}

// Header returns the named header field. The zero Value means the field is
// absent.
func (m *Message) Header(name string) header.Value {
	if !m.header.Has(name) {
		return header.Value{}
	}

	if addressFields[strings.ToLower(name)] {
		mh := mail.Header{Header: m.header}
		if addrs, err := mh.AddressList(name); err == nil && len(addrs) > 0 {
			return header.Addresses(addrs)
		}
	}

	raw := m.header.Get(name)
	if !utf8.ValidString(raw) {
		return header.Bytes([]byte(raw))
	}
	return header.Text(raw)
}

// TextParts returns every text/* leaf of a multipart message, or the root
// itself when the message is a single part.
func (m *Message) TextParts() []*Part {
	if m.Root == nil {
		return nil
	}
	if !m.Root.IsMultipart() {
		return []*Part{m.Root}
	}

	var out []*Part
	var walk func(p *Part)
	walk = func(p *Part) {
		if p.IsMultipart() {
			for _, c := range p.Children {
				walk(c)
			}
			return
		}
		if strings.HasPrefix(p.ContentType, "text/") {
			out = append(out, p)
		}
	}
	walk(m.Root)
	return out
}

// Parse reads data strictly and retries in lenient mode when that fails.
// Lenient mode never fails; the error is only returned for empty input.
func Parse(data []byte, logger *slog.Logger) (*Message, error) {
	if len(data) == 0 {
		return nil, errors.New("empty message")
	}

	msg, err := parse(data, false)
	if err == nil {
		return msg, nil
	}
	if logger != nil {
		logger.Debug("strict parse failed, retrying leniently", "err", err)
	}
	return parseLenient(data), nil
}

func parse(data []byte, lenient bool) (*Message, error) {
	e, err := message.Read(bytes.NewReader(data))
	converted := true
	if err != nil {
		switch {
		case message.IsUnknownCharset(err):
			converted = false
		case message.IsUnknownEncoding(err):
		default:
			return nil, fmt.Errorf("read message: %w", err)
		}
	}

	root, err := readPart(e, converted, lenient, 0)
	if err != nil {
		return nil, err
	}
	return &Message{Root: root, Lenient: lenient, header: e.Header}, nil
}

func parseLenient(data []byte) *Message {
	if msg, err := parse(sanitizeHeaderSection(data), true); err == nil {
		return msg
	}
	return &Message{
		Root:    &Part{ContentType: defaultContentType, Body: data},
		Lenient: true,
	}
}

// maxDepth bounds nesting of multipart and message/rfc822 parts.
const maxDepth = 32

func readPart(e *message.Entity, converted, lenient bool, depth int) (*Part, error) {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = defaultContentType
	}
	p := &Part{
		ContentType: strings.ToLower(mediaType),
		Charset:     params["charset"],
		Converted:   converted,
	}

	if mr := e.MultipartReader(); mr != nil {
		p.multipart = true
		if depth >= maxDepth {
			return p, nil
		}
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			childConverted := true
			if err != nil {
				switch {
				case message.IsUnknownCharset(err):
					childConverted = false
				case message.IsUnknownEncoding(err):
				default:
					if lenient {
						return p, nil
					}
					return nil, fmt.Errorf("read part %d: %w", len(p.Children)+1, err)
				}
			}
			if child == nil {
				continue
			}
			cp, err := readPart(child, childConverted, lenient, depth+1)
			if err != nil {
				return nil, err
			}
			p.Children = append(p.Children, cp)
		}
		return p, nil
	}

	body, err := io.ReadAll(e.Body)
	p.Body = body
	if err != nil && !lenient {
		return nil, fmt.Errorf("read body of %s: %w", p.ContentType, err)
	}

	if p.ContentType == "message/rfc822" && depth < maxDepth {
		if inner, err := message.Read(bytes.NewReader(body)); inner != nil && (err == nil || message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)) {
			if ip, err := readPart(inner, !message.IsUnknownCharset(err), lenient, depth+1); err == nil {
				p.multipart = true
				p.Children = []*Part{ip}
			}
		}
	}
	return p, nil
}

// sanitizeHeaderSection drops header lines that are neither a field nor a
// continuation of the previous field. The body is kept as is.
func sanitizeHeaderSection(data []byte) []byte {
	var out bytes.Buffer
	r := bufio.NewReader(bytes.NewReader(data))
	inField := false

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := bytes.TrimRight(line, "\r\n")
			if len(trimmed) == 0 {
				out.Write(line)
				rest, _ := io.ReadAll(r)
				out.Write(rest)
				return out.Bytes()
			}
			switch {
			case trimmed[0] == ' ' || trimmed[0] == '\t':
				if inField {
					out.Write(line)
				}
			case isFieldLine(trimmed):
				out.Write(line)
				inField = true
			default:
				inField = false
			}
		}
		if err != nil {
			break
		}
	}
	return out.Bytes()
}

func isFieldLine(line []byte) bool {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return false
	}
	for _, c := range line[:idx] {
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return true
}
