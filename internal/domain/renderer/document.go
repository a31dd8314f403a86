package renderer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
)

// Script is one script region of a document
type Script struct {
	Type string `json:"type,omitempty"`
	Src  string `json:"src,omitempty"`
	Text string `json:"text"`
}

// IsJavaScript reports whether a browser would execute the script as
// classic JavaScript
func (s Script) IsJavaScript() bool {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "", "text/javascript", "application/javascript", "text/ecmascript", "application/ecmascript":
		return true
	default:
		return false
	}
}

// Scripts returns the document's script regions in document order
func (d Document) Scripts() ([]Script, error) {
	root, err := htmlquery.Parse(strings.NewReader(string(d)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	nodes, err := htmlquery.QueryAll(root, "//script")
	if err != nil {
		return nil, fmt.Errorf("failed to query scripts: %w", err)
	}

	scripts := make([]Script, 0, len(nodes))
	for _, n := range nodes {
		scripts = append(scripts, Script{
			Type: htmlquery.SelectAttr(n, "type"),
			Src:  htmlquery.SelectAttr(n, "src"),
			Text: htmlquery.InnerText(n),
		})
	}
	return scripts, nil
}

// Summary describes a rendered document
type Summary struct {
	Bytes           int      `json:"bytes"`
	Title           string   `json:"title,omitempty"`
	Scripts         int      `json:"scripts"`
	ExternalScripts []string `json:"external_scripts,omitempty"`
	Styles          int      `json:"styles"`
}

// Inspect summarizes a document
func Inspect(d Document) (Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(d)))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse document: %w", err)
	}

	s := Summary{
		Bytes:   len(d),
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Scripts: doc.Find("script").Length(),
		Styles:  doc.Find("style").Length() + doc.Find(`link[rel="stylesheet"]`).Length(),
	}
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			s.ExternalScripts = append(s.ExternalScripts, src)
		}
	})
	return s, nil
}

var previewPolicy = bluemonday.UGCPolicy()

// Preview returns the document's markup with scripts, styles and event
// handlers stripped. Safe to embed in the host UI.
func Preview(d Document) string {
	return strings.TrimSpace(previewPolicy.Sanitize(string(d)))
}
