package parsers

import (
	"context"
	"strings"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
)

// TextParser implements the DocumentParser interface for plain text files.
// The content is already valid markdown and is kept as-is.
type TextParser struct{}

// NewTextParser creates a new TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse treats the whole file as markdown, taking the first line as the
// title and the leading 200 runes as the summary.
func (p *TextParser) Parse(ctx context.Context, data []byte, filename string) (*schema.ParseResult, error) {
	content := stripBOM(string(data))
	trimmed := strings.TrimSpace(content)

	title := untitled
	if trimmed != "" {
		firstLine := trimmed
		if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
			firstLine = firstLine[:idx]
		}
		if line := strings.TrimSpace(firstLine); line != "" {
			title = truncateRunes(line, maxTitleRunes)
		}
	}

	return &schema.ParseResult{
		Content: content,
		Title:   title,
		Summary: truncateRunes(trimmed, maxSummaryRunes),
	}, nil
}

// compile-time check to ensure TextParser implements the DocumentParser interface
var _ interfaces.DocumentParser = (*TextParser)(nil)
