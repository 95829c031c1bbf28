// Package search compiles egrep-style patterns and applies them to the
// searchable lines of a message.
package search

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NameTimeLayout is appended to default output names.
const NameTimeLayout = "2006-01-02_150405"

const (
	nameHeadLen  = 16
	fallbackName = "search"
)

// posixClasses maps bracket expressions to their RE2 equivalents.
var posixClasses = []struct {
	class string
	expr  string
}{
	{"[[:digit:]]", `\d`},
	{"[[:space:]]", `\s`},
	{"[[:alnum:]]", `[A-Za-z0-9]`},
	{"[[:alpha:]]", `[A-Za-z]`},
	{"[[:lower:]]", `[a-z]`},
	{"[[:upper:]]", `[A-Z]`},
	{"[[:punct:]]", `[!"#$%&'()*+,\-./:;<=>?@\[\\\]^_` + "`" + `{|}~]`},
	{"[[:blank:]]", `[ \t]`},
	{"[[:xdigit:]]", `[A-Fa-f0-9]`},
	{"[[:cntrl:]]", `[\x00-\x1F\x7F]`},
	{"[[:print:]]", `[ -~]`},
	{"[[:graph:]]", `[!-~]`},
}

var underscoreRunRE = regexp.MustCompile(`_+`)

// Pattern is a compiled search expression.
type Pattern struct {
	expr string
	re   *regexp.Regexp
}

// Compile translates the POSIX classes in expr and compiles it so that '.'
// also matches line breaks.
func Compile(expr string, ignoreCase bool) (*Pattern, error) {
	flags := "(?s)"
	if ignoreCase {
		flags = "(?si)"
	}
	re, err := regexp.Compile(flags + translate(expr))
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return &Pattern{expr: expr, re: re}, nil
}

func translate(expr string) string {
	for _, c := range posixClasses {
		expr = strings.ReplaceAll(expr, c.class, c.expr)
	}
	return expr
}

// String returns the pattern as given by the user.
func (p *Pattern) String() string {
	return p.expr
}

// Check reports whether the pattern matches anywhere in line.
func (p *Pattern) Check(line string) bool {
	return p.re.MatchString(line)
}

// DefaultOutputName derives a file name from the pattern and the current
// time. Two calls within the same second for the same pattern collide.
func (p *Pattern) DefaultOutputName() string {
	return p.OutputNameAt(time.Now())
}

// OutputNameAt is DefaultOutputName with an explicit timestamp.
func (p *Pattern) OutputNameAt(t time.Time) string {
	return nameHead(p.expr) + "_" + t.Format(NameTimeLayout)
}

func nameHead(expr string) string {
	s := strings.ReplaceAll(norm.NFKC.String(expr), " ", "_")
	s = strings.Map(func(r rune) rune {
		if isWordRune(r) {
			return r
		}
		return -1
	}, s)
	s = strings.Trim(underscoreRunRE.ReplaceAllString(s, "_"), "_")

	runes := []rune(s)
	if len(runes) > nameHeadLen {
		runes = runes[:nameHeadLen]
	}
	if len(runes) == 0 {
		return fallbackName
	}
	return strings.ToLower(string(runes))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r)
}
