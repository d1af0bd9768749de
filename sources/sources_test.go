package sources

import (
	"testing"

	"github.com/SaiNageswarS/kb-agent/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolMsg(content string) llm.Message {
	return llm.Message{Role: llm.RoleTool, Content: content}
}

const kbOutput = `[KNOWLEDGE BASE RESULTS] query: LibreTexts

1. LibreTexts Overview
   URL: https://libretexts.org/about
   Score: 0.91
   LibreTexts is an open educational resource project.

2. LibreTexts Chemistry
   URL: https://chem.libretexts.org
   Score: 0.78
   Chemistry library.`

const webOutput = `[WEB SEARCH RESULTS] query: LibreTexts

1. LibreTexts - Wikipedia
   URL: https://en.wikipedia.org/wiki/LibreTexts
   LibreTexts is a non-profit.

2. LibreTexts Overview
   URL: https://libretexts.org/about
   Same page as the kb hit.`

func TestExtractKnowledgeBase(t *testing.T) {
	got := Extract([]llm.Message{toolMsg(kbOutput)})

	require.Len(t, got, 2)
	assert.Equal(t, Source{Number: 1, Title: "LibreTexts Overview", URL: "https://libretexts.org/about", Origin: OriginKnowledgeBase}, got[0])
	assert.Equal(t, Source{Number: 2, Title: "LibreTexts Chemistry", URL: "https://chem.libretexts.org", Origin: OriginKnowledgeBase}, got[1])
}

func TestExtractNumbersAcrossMessages(t *testing.T) {
	got := Extract([]llm.Message{toolMsg(kbOutput), toolMsg(webOutput)})

	require.Len(t, got, 4)
	for i, s := range got {
		assert.Equal(t, i+1, s.Number)
	}
	assert.Equal(t, OriginWeb, got[2].Origin)
	// Same URL from a different origin is kept.
	assert.Equal(t, "https://libretexts.org/about", got[3].URL)
	assert.Equal(t, OriginWeb, got[3].Origin)
}

func TestExtractDedupesWithinOrigin(t *testing.T) {
	got := Extract([]llm.Message{toolMsg(kbOutput), toolMsg(kbOutput)})

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, 2, got[1].Number)
}

func TestExtractIgnoresToolNumbering(t *testing.T) {
	content := `[WEB SEARCH RESULTS] query: x

7. Seventh
   URL: https://example.com/7

3. Third
   URL: http://example.com/3`

	got := Extract([]llm.Message{toolMsg(content)})
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, "Seventh", got[0].Title)
	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, "http://example.com/3", got[1].URL)
}

func TestExtractSkipsMalformedEntries(t *testing.T) {
	content := `[KNOWLEDGE BASE RESULTS] query: x

1.
   URL: https://example.com/no-title

2. Bad scheme
   URL: ftp://example.com/file

3. Relative
   URL: /docs/page

4. No url line
   Score: 0.9

5. Empty url
   URL:

6. Good
   URL: https://example.com/good`

	got := Extract([]llm.Message{toolMsg(content)})
	require.Len(t, got, 1)
	assert.Equal(t, Source{Number: 1, Title: "Good", URL: "https://example.com/good", Origin: OriginKnowledgeBase}, got[0])
}

func TestExtractSkipsUntaggedAndErrorMessages(t *testing.T) {
	got := Extract([]llm.Message{
		toolMsg("No relevant results found in the knowledge base."),
		toolMsg("Error: knowledge base search failed: connection refused"),
		toolMsg("Web search is unavailable: no API key configured."),
		toolMsg("1. Looks like a result\n   URL: https://example.com"),
	})
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestExtractEmpty(t *testing.T) {
	assert.Empty(t, Extract(nil))
}
