package model

import (
	"strconv"
	"strings"
)

// Part names used for hits that do not come from a MIME body part.
const (
	PartHeader       = "header"
	PartPlain        = "text/plain"
	PartHTML         = "text/html"
	PartHTMLTextOnly = "text/html_textonly"
	PartHTMLConcat   = "text/html_concat"
)

// Hit is one matched line.
type Hit struct {
	Profile *Profile
	MailSeq int
	HitSeq  int
	Part    string
	Line    string
}

// NewHit builds a Hit with the line trimmed of surrounding whitespace.
func NewHit(profile *Profile, mailSeq, hitSeq int, part, line string) Hit {
	return Hit{
		Profile: profile,
		MailSeq: mailSeq,
		HitSeq:  hitSeq,
		Part:    part,
		Line:    strings.TrimSpace(line),
	}
}

// Values flattens the hit into the report columns, unsanitized.
func (h Hit) Values() []string {
	p := h.Profile
	if p == nil {
		p = &Profile{}
	}
	return []string{
		strconv.Itoa(h.MailSeq),
		strconv.Itoa(h.HitSeq),
		p.MessageID,
		p.ExcelLink(),
		p.DateDisplay,
		p.From,
		p.To,
		p.Subject,
		h.Part,
		h.Line,
	}
}
