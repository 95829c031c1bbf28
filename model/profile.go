package model

import "time"

// Profile holds the identifying fields of one message. It is built once per
// message and shared by every hit found in it.
type Profile struct {
	MessageID   string
	DateDisplay string
	// DateSortKey is nil when the Date header was absent or unparsable.
	DateSortKey *time.Time
	Link        string
	Subject     string
	From        string
	To          string
}

// ExcelLink renders the deep link as a spreadsheet HYPERLINK formula.
func (p *Profile) ExcelLink() string {
	if p == nil || p.Link == "" {
		return ""
	}
	return `=HYPERLINK("` + p.Link + `","Open")`
}
