package parser

import (
	"fmt"
	"strings"

	"github.com/advancedlogic/GoOse/pkg/goose"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Extraction method names, recorded on the record for observability.
const (
	MethodReadability = "readability"
	MethodTrafilatura = "trafilatura"
	MethodGoose       = "goose"
)

// ExtractText runs the extractor chain (readability, then trafilatura,
// then goose) over raw HTML and returns the normalized plain text plus
// the method that produced it.
func ExtractText(htmlStr string) (string, string, error) {
	if text, err := extractWithReadability(htmlStr); err == nil && text != "" {
		return text, MethodReadability, nil
	}
	if text, err := extractWithTrafilatura(htmlStr); err == nil && text != "" {
		return text, MethodTrafilatura, nil
	}
	if text, err := extractWithGoose(htmlStr); err == nil && text != "" {
		return text, MethodGoose, nil
	}
	return "", "", fmt.Errorf("no extractor produced text")
}

func extractWithReadability(htmlStr string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", err
	}
	article, err := readability.FromDocument(doc, nil)
	if err != nil {
		return "", err
	}
	return NormalizeWhitespace(article.TextContent), nil
}

func extractWithTrafilatura(htmlStr string) (string, error) {
	article, err := trafilatura.Extract(strings.NewReader(htmlStr), trafilatura.Options{})
	if err != nil {
		return "", err
	}
	return NormalizeWhitespace(article.ContentText), nil
}

func extractWithGoose(htmlStr string) (string, error) {
	g := goose.New()
	article, err := g.ExtractFromRawHTML(htmlStr, "")
	if err != nil {
		return "", err
	}
	return NormalizeWhitespace(article.CleanedText), nil
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// blank-line runs into single newlines, so content hashes are stable
// across extractors.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}
