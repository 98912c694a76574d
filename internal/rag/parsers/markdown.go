package parsers

import (
	"context"
	"regexp"
	"strings"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
)

var (
	firstHeadingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	codeBlockRe    = regexp.MustCompile("(?s)```.*?```")
	headingLineRe  = regexp.MustCompile(`(?m)^#+\s+.*$`)
)

// MarkdownParser implements the DocumentParser interface for markdown files.
type MarkdownParser struct{}

// NewMarkdownParser creates a new MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse keeps the markdown content unchanged. The title is the first
// level-one heading, falling back to the filename stem; the summary is taken
// from the body with code blocks and headings removed.
func (p *MarkdownParser) Parse(ctx context.Context, data []byte, filename string) (*schema.ParseResult, error) {
	content := stripBOM(string(data))

	title := untitled
	if m := firstHeadingRe.FindStringSubmatch(content); m != nil {
		title = truncateRunes(strings.TrimSpace(m[1]), maxTitleRunes)
	} else if stem := fileStem(filename); stem != "" {
		title = truncateRunes(stem, maxTitleRunes)
	}

	body := codeBlockRe.ReplaceAllString(content, "")
	body = headingLineRe.ReplaceAllString(body, "")
	summary := truncateRunes(strings.TrimSpace(body), maxSummaryRunes)

	return &schema.ParseResult{
		Content: content,
		Title:   title,
		Summary: summary,
	}, nil
}

// compile-time check to ensure MarkdownParser implements the DocumentParser interface
var _ interfaces.DocumentParser = (*MarkdownParser)(nil)
