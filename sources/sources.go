// Package sources derives the citation list of an answer from the raw tool
// output the model read while producing it.
package sources

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/SaiNageswarS/go-collection-boot/ds"
	"github.com/SaiNageswarS/kb-agent/llm"
)

type Origin string

const (
	OriginKnowledgeBase Origin = "kb"
	OriginWeb           Origin = "web"
)

// Headers that open a tool's result listing. Tools own the format; Extract
// only reads it.
const (
	KnowledgeBaseTag = "[KNOWLEDGE BASE RESULTS]"
	WebSearchTag     = "[WEB SEARCH RESULTS]"
)

type Source struct {
	Number int    `json:"number" bson:"number"`
	Title  string `json:"title" bson:"title"`
	URL    string `json:"url" bson:"url"`
	Origin Origin `json:"origin" bson:"origin"`
}

type sourceKey struct {
	origin Origin
	url    string
}

// entryPattern matches "N. <title>" followed by an indented "URL: <url>" line.
var entryPattern = regexp.MustCompile(`(?m)^[ \t]*(\d+)\.[ \t]+(.*)\n[ \t]+URL:[ \t]*(\S*)`)

// Extract scans tool messages in order and returns every cited entry,
// deduplicated by origin and URL and numbered 1..n across the whole run.
// Malformed entries and messages without a known header are skipped.
func Extract(toolMessages []llm.Message) []Source {
	out := []Source{}
	seen := ds.NewSet[sourceKey]()

	for _, msg := range toolMessages {
		origin, ok := originOf(msg.Content)
		if !ok {
			continue
		}

		for _, m := range entryPattern.FindAllStringSubmatch(msg.Content, -1) {
			title := strings.TrimSpace(m[2])
			link := strings.TrimSpace(m[3])
			if title == "" || !isHTTPURL(link) {
				continue
			}

			key := sourceKey{origin: origin, url: link}
			if seen.Contains(key) {
				continue
			}
			seen.Add(key)

			out = append(out, Source{
				Number: len(out) + 1,
				Title:  title,
				URL:    link,
				Origin: origin,
			})
		}
	}
	return out
}

func originOf(content string) (Origin, bool) {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	switch {
	case strings.HasPrefix(trimmed, KnowledgeBaseTag):
		return OriginKnowledgeBase, true
	case strings.HasPrefix(trimmed, WebSearchTag):
		return OriginWeb, true
	}
	return "", false
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
