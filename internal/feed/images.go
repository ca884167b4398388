package feed

import (
	"strings"

	"github.com/stripfeed/stripfeed/internal/core"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RecoverImages extracts image references embedded in a stored description
// body, in document order. Older store schemas carried panels only as <img>
// tags in the entry body, so this is the read path's fallback when the
// structured enclosure is missing.
func RecoverImages(htmlText string) []core.Image {
	if htmlText == "" || !strings.Contains(strings.ToLower(htmlText), "<img") {
		return nil
	}

	// Parse as fragment so this works on the partial HTML feed bodies hold.
	root := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	nodes, err := html.ParseFragment(strings.NewReader(htmlText), root)
	if err != nil {
		return nil
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	var images []core.Image
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "img") {
			src := attrValue(n, "src")
			if src == "" {
				// Some source sites emit lazy-loading attrs.
				src = firstNonEmpty(attrValue(n, "data-src"), attrValue(n, "data-original"), attrValue(n, "data-lazy-src"))
			}
			if isUsableImageURL(src) {
				images = append(images, core.Image{
					URL:   src,
					Alt:   attrValue(n, "alt"),
					Title: attrValue(n, "title"),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return images
}

func isUsableImageURL(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return false
	}
	// Inline data URIs are not addressable panel images.
	return !strings.HasPrefix(s, "data:")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
