package mailmsg

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is how parsed dates are shown in reports.
const DisplayLayout = "2006-01-02 15:04:05"

var (
	tzOffsetRE  = regexp.MustCompile(`([+-])(\d{2})(\d{2})`)
	tzCommentRE = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

	fallbackLayouts = []string{
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"Mon, 2 Jan 2006 15:04:05",
		"2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05",
		"Mon, 2 Jan 2006 15:04",
		"2 Jan 2006 15:04",
		"Mon, 2 Jan 06 15:04:05 -0700",
		"Mon Jan 2 15:04:05 2006",
		"Mon Jan 2 15:04:05 MST 2006",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
)

// ParseDate parses a Date header value. Well-formed values go through
// net/mail; common malformations (out of range offsets, trailing zone
// comments, missing zones) are retried with a set of fixed layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}

	norm := normalizeTZOffset(tzCommentRE.ReplaceAllString(s, ""))
	if t, err := mail.ParseDate(norm); err == nil {
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeTZOffset(s string) string {
	return tzOffsetRE.ReplaceAllStringFunc(s, func(m string) string {
		sign := m[0:1]
		hh, _ := strconv.Atoi(m[1:3])
		mm, _ := strconv.Atoi(m[3:5])
		if hh > 23 {
			hh = 23
		}
		if mm > 59 {
			mm = 59
		}
		return fmt.Sprintf("%s%02d%02d", sign, hh, mm)
	})
}
