package naver

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Extracted is the readable content of one news article page.
type Extracted struct {
	Title  string
	Author string
	Date   string
	Text   string
}

// bodyContainers are element ids and classes that hold article text on the
// major Korean news portals, most specific first.
var bodyContainers = []string{
	"dic_area",            // n.news.naver.com
	"newsct_article",      // n.news.naver.com
	"articleBodyContents", // legacy news.naver.com
	"article-view-content-div",
	"article_body",
	"articleBody",
	"news_body_area",
}

// skipped elements never contribute article text.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "svg": true,
	"nav": true, "footer": true, "header": true, "aside": true, "form": true, "button": true,
}

// ExtractArticle pulls title, byline, publish date and body text from an
// article page. The body comes from a known container when one exists,
// otherwise from the page's <article> element, otherwise from its paragraphs.
func ExtractArticle(page []byte) (Extracted, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return Extracted{}, err
	}

	meta := collectMeta(doc)
	out := Extracted{
		Title:  firstNonEmpty(meta["og:title"], meta["twitter:title"], textOf(findElement(doc, "title"))),
		Author: firstNonEmpty(meta["article:author"], meta["dable:author"], meta["author"], meta["byl"]),
		Date:   firstNonEmpty(meta["article:published_time"], meta["og:regdate"], meta["pubdate"], meta["date"]),
	}

	switch body := findBody(doc); {
	case body != nil:
		out.Text = textOf(body)
	default:
		out.Text = paragraphText(doc)
	}
	return out, nil
}

func findBody(doc *html.Node) *html.Node {
	for _, key := range bodyContainers {
		if n := find(doc, func(n *html.Node) bool {
			return attr(n, "id") == key || hasClass(n, key)
		}); n != nil {
			return n
		}
	}
	return findElement(doc, "article")
}

func collectMeta(doc *html.Node) map[string]string {
	meta := make(map[string]string)
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" {
			key := firstNonEmpty(attr(n, "property"), attr(n, "name"))
			if key != "" {
				key = strings.ToLower(key)
				if _, seen := meta[key]; !seen {
					meta[key] = strings.TrimSpace(attr(n, "content"))
				}
			}
		}
		return true
	})
	return meta
}

func paragraphText(doc *html.Node) string {
	var parts []string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if skipped[n.Data] {
			return false
		}
		if n.Data == "p" {
			if t := textOf(n); t != "" {
				parts = append(parts, t)
			}
			return false
		}
		return true
	})
	return strings.Join(parts, "\n")
}

// textOf returns the visible text under n with whitespace collapsed. Block
// boundaries become newlines.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			if skipped[n.Data] {
				return
			}
			switch n.Data {
			case "br", "p", "div", "li":
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return collapse(sb.String())
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func findElement(doc *html.Node, tag string) *html.Node {
	return find(doc, func(n *html.Node) bool { return n.Data == tag })
}

func find(doc *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits nodes depth-first; returning false skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
