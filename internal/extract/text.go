package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"noscript": true,
}

// blockElements end a run of text so words on either side stay separated.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "td": true, "th": true,
	"li": true, "table": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true,
}

// CleanText reduces filing HTML (or plain text) to a single line of text with
// whitespace collapsed and non-breaking spaces normalized.
func CleanText(raw string) string {
	text := raw
	if strings.Contains(raw, "<") {
		if doc, err := html.Parse(strings.NewReader(raw)); err == nil {
			var b strings.Builder
			extractText(doc, &b)
			text = b.String()
		}
	}
	text = strings.NewReplacer("\u00a0", " ", "\u2009", " ", "\u2019", "'", "\u201c", `"`, "\u201d", `"`).Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skippedElements[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte(' ')
	}
}
