package mailmsg

import (
	"strings"

	"golang.org/x/net/html"
	a "golang.org/x/net/html/atom"

	"github.com/dhcgn/mail-grep/model"
)

// hiddenElements never contribute visible text.
var hiddenElements = map[a.Atom]bool{
	a.Head:   true,
	a.Script: true,
	a.Style:  true,
	a.Meta:   true,
	a.Title:  true,
	a.Link:   true,
}

func htmlViews(src string) []Line {
	out := []Line{{Text: src, Part: model.PartHTML}}

	strs, err := VisibleStrings(src)
	if err != nil {
		return out
	}
	for _, s := range strs {
		for _, l := range SplitLines(s) {
			if strings.TrimSpace(l) != "" {
				out = append(out, Line{Text: l, Part: model.PartHTMLTextOnly})
			}
		}
	}
	if concat := strings.Join(strs, ""); concat != "" {
		out = append(out, Line{Text: concat, Part: model.PartHTMLConcat})
	}
	return out
}

// VisibleStrings parses src and returns every non-empty text node, trimmed,
// in document order. Head, script, style, meta, title and link elements
// are skipped together with their content.
func VisibleStrings(src string) ([]string, error) {
	doc, err := html.ParseWithOptions(strings.NewReader(src), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, err
	}

	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if hiddenElements[n.DataAtom] {
				return
			}
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}
