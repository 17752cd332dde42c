// Package extract turns an answer region's HTML into clean text. Answer
// regions carry rich markup (lists, tables, links); sanitizing and
// converting preserves their structure better than a raw text read.
package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Cleaner converts answer HTML to text. Safe for reuse across queries.
type Cleaner struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewCleaner creates a Cleaner with the UGC sanitization policy and a
// markdown converter with table support.
func NewCleaner() *Cleaner {
	return &Cleaner{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Clean converts the region's HTML to text. fallback is the region's
// visible text, used when the markup yields nothing usable.
func (c *Cleaner) Clean(regionHTML, fallback string) string {
	if strings.TrimSpace(regionHTML) != "" {
		sanitized := c.policy.Sanitize(regionHTML)
		if md, err := c.conv.ConvertString(sanitized); err == nil {
			if text := CleanText(md); text != "" {
				return text
			}
		}
		// Markup the converter could not handle; walk the tree for
		// visible text instead.
		if text := CleanText(visibleText(regionHTML)); text != "" {
			return text
		}
	}
	return CleanText(fallback)
}

// CleanText collapses runs of blank lines and trims surrounding space.
// Single newlines inside the answer are kept; they carry list structure.
func CleanText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// visibleText walks the parsed tree and collects text outside script and
// style subtrees.
func visibleText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
