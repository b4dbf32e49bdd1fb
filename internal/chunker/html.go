package chunker

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML extracts the visible text of an HTML document. Script, style,
// noscript, and title subtrees are dropped; block-level elements contribute
// whitespace so adjacent cells and paragraphs do not fuse into one token.
// Entities are decoded by the parser.
func StripHTML(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		// The tokenizer is error-tolerant so this is unreachable for
		// in-memory input, but degrade to a tag strip rather than drop text.
		return tagPattern.ReplaceAllString(src, " ")
	}

	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "title":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "td", "th", "table",
				"h1", "h2", "h3", "h4", "h5", "h6":
				buf.WriteString("\n")
			}
		}
	}
	extract(doc)

	return buf.String()
}
