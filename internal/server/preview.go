package server

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

const previewLimit = 280

// previewText flattens an entry's HTML description into a short plain-text
// snippet for the comics listing.
func previewText(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	text := html
	if strings.Contains(html, "<") {
		conv := converter.NewConverter(
			converter.WithEscapeMode("disabled"),
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
		md, err := conv.ConvertString(html)
		if err != nil {
			return "", err
		}
		text = md
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > previewLimit {
		cut := strings.LastIndex(text[:previewLimit], " ")
		if cut < previewLimit/2 {
			cut = previewLimit
		}
		text = text[:cut] + "…"
	}
	return text, nil
}
