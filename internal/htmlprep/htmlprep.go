// Package htmlprep rewrites HTML content before it is loaded into a tab.
package htmlprep

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Preparer implements snapshot.ContentPreparer.
type Preparer struct{}

// New returns a Preparer.
func New() *Preparer {
	return &Preparer{}
}

// Prepare adds <base href=baseURL> to the document head so relative
// stylesheets, images and links resolve when the content is loaded into
// about:blank. Documents that already declare a base are returned unchanged.
func (p *Preparer) Prepare(content, baseURL string) (string, error) {
	if baseURL == "" {
		return content, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	if doc.Find("base[href]").Length() > 0 {
		return content, nil
	}
	doc.Find("head").First().PrependHtml(fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL)))
	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}
