package duckduckgo

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const maxSnippets = 3

// HTMLScraper reads result snippets from the DuckDuckGo HTML endpoint.
type HTMLScraper struct {
	client *Client
}

func (p *HTMLScraper) Name() string {
	return "DuckDuckGo"
}

func (p *HTMLScraper) Lookup(ctx context.Context, query string) (string, bool, error) {
	raw, err := p.client.get(ctx, p.client.cfg.HTMLURL+"?"+url.Values{"q": {query}}.Encode())
	if err != nil {
		return "", false, err
	}
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", false, fmt.Errorf("parse duckduckgo html: %w", err)
	}

	snippets := collectByClass(doc, "a", "result__snippet", maxSnippets)
	if len(snippets) == 0 {
		snippets = collectByClass(doc, "div", "result__body", maxSnippets)
	}
	text := p.client.sanitize(strings.Join(snippets, " "))
	return text, text != "", nil
}

func collectByClass(root *html.Node, tag, class string, limit int) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag && hasClass(n, class) {
			if text := strings.Join(strings.Fields(nodeText(n)), " "); text != "" {
				out = append(out, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
