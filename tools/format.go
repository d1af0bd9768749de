package tools

import (
	"fmt"
	"strings"

	"github.com/SaiNageswarS/kb-agent/kb"
	"github.com/SaiNageswarS/kb-agent/sources"
	"github.com/SaiNageswarS/kb-agent/websearch"
)

// FormatKnowledgeBaseResults renders hits in the listing format the source
// extractor parses.
func FormatKnowledgeBaseResults(query string, hits []kb.Hit) string {
	var b strings.Builder
	writeHeader(&b, sources.KnowledgeBaseTag, query)
	for i, h := range hits {
		writeEntry(&b, i+1, h.Title, h.URL)
		fmt.Fprintf(&b, "   Score: %.2f\n", h.Score)
		writeBody(&b, h.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatWebResults(query string, results []websearch.Result) string {
	var b strings.Builder
	writeHeader(&b, sources.WebSearchTag, query)
	for i, r := range results {
		writeEntry(&b, i+1, r.Title, r.URL)
		writeBody(&b, r.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeHeader(b *strings.Builder, tag, query string) {
	fmt.Fprintf(b, "%s query: %s\n", tag, oneLine(query))
}

func writeEntry(b *strings.Builder, n int, title, url string) {
	fmt.Fprintf(b, "\n%d. %s\n   URL: %s\n", n, oneLine(title), strings.TrimSpace(url))
}

func writeBody(b *strings.Builder, text string) {
	if text = oneLine(text); text != "" {
		fmt.Fprintf(b, "   %s\n", text)
	}
}

// oneLine collapses all whitespace, newlines included, so a field can never
// break the listing layout.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
