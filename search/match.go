package search

import (
	"log/slog"

	"github.com/dhcgn/mail-grep/header"
	"github.com/dhcgn/mail-grep/mailmsg"
	"github.com/dhcgn/mail-grep/model"
)

// DefaultParts are the body views searched unless configured otherwise.
var DefaultParts = []string{model.PartPlain, model.PartHTMLTextOnly}

// Match is one matching line of a message.
type Match struct {
	Part string
	Line string
}

// Matcher applies a pattern to the header lines and selected body views of
// a message.
type Matcher struct {
	pattern *Pattern
	parts   map[string]bool
	decoder *header.Decoder
	logger  *slog.Logger
}

// NewMatcher returns a Matcher searching header lines and the given body
// parts. An empty parts list selects DefaultParts.
func NewMatcher(p *Pattern, parts []string, logger *slog.Logger) *Matcher {
	if len(parts) == 0 {
		parts = DefaultParts
	}
	set := make(map[string]bool, len(parts))
	for _, part := range parts {
		set[part] = true
	}
	return &Matcher{
		pattern: p,
		parts:   set,
		decoder: header.NewDecoder(logger),
		logger:  logger,
	}
}

// Pattern returns the compiled search pattern.
func (m *Matcher) Pattern() *Pattern {
	return m.pattern
}

// Decoder returns the header decoder shared by the matcher.
func (m *Matcher) Decoder() *header.Decoder {
	return m.decoder
}

// Match returns header matches first and body matches after, each in the
// order the lines appear in the message.
func (m *Matcher) Match(msg *mailmsg.Message) []Match {
	var out []Match
	for _, line := range mailmsg.HeaderLines(msg, m.decoder, m.logger) {
		if m.pattern.Check(line) {
			out = append(out, Match{Part: model.PartHeader, Line: line})
		}
	}
	for _, line := range mailmsg.BodyLines(msg) {
		if !m.parts[line.Part] {
			continue
		}
		if m.pattern.Check(line.Text) {
			out = append(out, Match{Part: line.Part, Line: line.Text})
		}
	}
	return out
}

// Hits turns the matches of one message into numbered hits that share the
// message profile.
func (m *Matcher) Hits(msg *mailmsg.Message, mailSeq int) []model.Hit {
	matches := m.Match(msg)
	if len(matches) == 0 {
		return nil
	}
	profile := mailmsg.NewProfile(msg, m.decoder)
	hits := make([]model.Hit, 0, len(matches))
	for i, match := range matches {
		hits = append(hits, model.NewHit(profile, mailSeq, i+1, match.Part, match.Line))
	}
	return hits
}
