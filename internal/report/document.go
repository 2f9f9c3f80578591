// Package report renders thesis documents: Markdown and HTML conversion,
// SVG price charts, and a standalone HTML page for saving a thesis to disk.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/seenimoa/thesisai/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Format detection
// ════════════════════════════════════════════════════════════════════

var fenceRe = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)\r?\n?```$")

// Unfence strips a single code fence wrapping the whole document, as models
// often return "```html ... ```". Anything else is returned trimmed.
func Unfence(doc string) string {
	doc = strings.TrimSpace(doc)
	if m := fenceRe.FindStringSubmatch(doc); m != nil {
		return strings.TrimSpace(m[1])
	}
	return doc
}

// blockTags are the elements whose presence marks a document as HTML.
var blockTags = "h1, h2, h3, h4, h5, h6, p, ul, ol, table, div, section, article, header, br"

// IsHTML reports whether doc is HTML markup rather than Markdown.
// A document counts as HTML when it starts with a tag and contains at
// least one block element.
func IsHTML(doc string) bool {
	doc = strings.TrimSpace(doc)
	if !strings.HasPrefix(doc, "<") {
		return false
	}
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return false
	}
	return gq.Find(blockTags).Length() > 0
}

// Detect returns the format doc is written in.
func Detect(doc string) models.DocumentFormat {
	if IsHTML(doc) {
		return models.FormatHTML
	}
	return models.FormatMarkdown
}

// ════════════════════════════════════════════════════════════════════
// Conversion
// ════════════════════════════════════════════════════════════════════

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithXHTML(),
		html.WithUnsafe(), // theses may mix inline HTML into Markdown
	),
)

// MarkdownToHTML renders GitHub-flavored Markdown as an HTML fragment.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// HTMLToMarkdown converts an HTML document to Markdown for terminal output.
func HTMLToMarkdown(src string) (string, error) {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	out, err := conv.ConvertString(src)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Convert returns doc in the requested format. doc is unfenced first and
// left untouched when it is already in that format.
func Convert(doc string, to models.DocumentFormat) (string, error) {
	doc = Unfence(doc)
	from := Detect(doc)
	if from == to {
		return doc, nil
	}
	switch to {
	case models.FormatHTML:
		return MarkdownToHTML(doc)
	case models.FormatMarkdown:
		return HTMLToMarkdown(doc)
	default:
		return "", fmt.Errorf("unsupported document format %q", to)
	}
}

// PlainText returns the visible text of an HTML or Markdown document with
// whitespace collapsed.
func PlainText(doc string) string {
	doc = Unfence(doc)
	if !IsHTML(doc) {
		rendered, err := MarkdownToHTML(doc)
		if err != nil {
			return strings.Join(strings.Fields(doc), " ")
		}
		doc = rendered
	}
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return strings.Join(strings.Fields(doc), " ")
	}
	gq.Find("script, style").Remove()
	return strings.Join(strings.Fields(gq.Text()), " ")
}
