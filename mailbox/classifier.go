// Package mailbox decides which Apple Mail mailboxes hold searchable mail.
//
// A mailbox is a directory named "<name>.mbox". When it carries an
// Info.plist, the strings found in it decide first; the directory name and
// its parent are only consulted when the metadata is missing or says
// nothing.
package mailbox

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/emersion/go-imap/utf7"
	"golang.org/x/text/unicode/norm"
	"howett.net/plist"
)

// MetadataFile is the per-mailbox property list written by Apple Mail.
const MetadataFile = "Info.plist"

// Normalize folds s to NFKC lower case and drops whitespace, punctuation,
// symbols and underscores.
func Normalize(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsSpace(r) || !isWordRune(r) {
			return -1
		}
		return r
	}, s)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// fold is Normalize without stripping, used for special-use attributes.
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// StringsFromMetadata returns every string leaf of the property list at
// path. Missing or unreadable files yield nil.
func StringsFromMetadata(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var root any
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil
	}

	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for _, vv := range t {
				walk(vv)
			}
		case []any:
			for _, vv := range t {
				walk(vv)
			}
		case []byte:
			out = append(out, strings.ToValidUTF8(string(t), ""))
		case string:
			out = append(out, t)
		}
	}
	walk(root)
	return out
}

// Classifier applies the token rules to mailbox directories.
type Classifier struct{}

// IsExcluded reports whether dir holds drafts, trash, junk, outbox, archive
// or other non-mail content.
func (Classifier) IsExcluded(dir string) bool {
	if strs, ok := metadataStrings(dir); ok {
		if containsRaw(strs, specialUseExclude) || containsNormalized(strs, excludeTokens) {
			return true
		}
	}
	return containsNormalized(dirNames(dir), excludeTokens)
}

// IsSent reports whether dir holds sent mail.
func (Classifier) IsSent(dir string) bool {
	if strs, ok := metadataStrings(dir); ok {
		if containsRaw(strs, specialUseSent) || containsNormalized(strs, sentTokens) {
			return true
		}
	}
	return containsNormalized(dirNames(dir), sentTokens)
}

func metadataStrings(dir string) ([]string, bool) {
	path := filepath.Join(dir, MetadataFile)
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}
	return StringsFromMetadata(path), true
}

// dirNames returns the mailbox name without its .mbox suffix and the name
// of the enclosing directory, both decoded from IMAP modified UTF-7 when
// they are written that way.
func dirNames(dir string) []string {
	clean := filepath.Clean(dir)
	name := strings.TrimSuffix(filepath.Base(clean), ".mbox")
	parent := filepath.Base(filepath.Dir(clean))
	return []string{decodeMailboxName(name), decodeMailboxName(parent)}
}

func decodeMailboxName(name string) string {
	if !strings.Contains(name, "&") || !strings.Contains(name, "-") {
		return name
	}
	decoded, err := utf7.Encoding.NewDecoder().String(name)
	if err != nil {
		return name
	}
	return decoded
}

func containsRaw(strs []string, tokens []string) bool {
	for _, s := range strs {
		f := fold(s)
		for _, tok := range tokens {
			if strings.Contains(f, tok) {
				return true
			}
		}
	}
	return false
}

func containsNormalized(strs []string, tokens []string) bool {
	for _, s := range strs {
		n := Normalize(s)
		if n == "" {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(n, Normalize(tok)) {
				return true
			}
		}
	}
	return false
}
