// Package scrape extracts structure from HTML pages. The mod host publishes
// no API, so the pipeline walks anchor tags the way a browser user would.
// Every site-specific pattern lives in a Predicate owned by the caller; a
// site layout change means editing one predicate, not this package.
package scrape

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Predicate selects anchors by their resolved absolute URL and visible text.
type Predicate func(absURL, anchorText string) bool

// Links parses the document and returns the absolute URLs of all anchors the
// predicate accepts, in document order, first-seen deduplicated. Relative
// hrefs are resolved against base. Zero matches yields an empty slice, never
// an error: the caller decides whether that is fatal.
func Links(doc []byte, base *url.URL, pred Predicate) []string {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		// html.Parse only fails on reader errors; a string reader cannot.
		return nil
	}

	seen := make(map[string]struct{})
	var out []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				abs := resolve(base, strings.TrimSpace(href))
				if abs != "" && pred(abs, anchorText(n)) {
					if _, dup := seen[abs]; !dup {
						seen[abs] = struct{}{}
						out = append(out, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// FirstLink returns the first anchor href in the document resolved against
// base, or "" when the document has none. Mirror start pages are exactly
// this: a page whose first link is the direct download.
func FirstLink(doc []byte, base *url.URL) string {
	links := Links(doc, base, func(string, string) bool { return true })
	if len(links) == 0 {
		return ""
	}
	return links[0]
}

// Text flattens the document's visible text, nodes separated by single
// spaces, for pattern matches against page labels.
func Text(doc []byte) string {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func anchorText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
