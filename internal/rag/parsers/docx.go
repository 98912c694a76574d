package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/unidoc/unioffice/v2/document"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
)

// paragraphsPerPage is the rough page-count estimate for word documents,
// which carry no page boundaries of their own.
const paragraphsPerPage = 20

// DocxParser implements the DocumentParser interface for Word (.docx) files.
// Heading-styled paragraphs become markdown headings, everything else plain
// paragraphs.
type DocxParser struct{}

// NewDocxParser creates a new DocxParser.
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Parse converts the document's paragraphs to markdown.
func (p *DocxParser) Parse(ctx context.Context, data []byte, filename string) (*schema.ParseResult, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	var plainParagraphs []string

	paragraphs := doc.Paragraphs()
	for _, para := range paragraphs {
		var textBuilder strings.Builder
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		text := strings.TrimSpace(textBuilder.String())
		if text == "" {
			continue
		}
		plainParagraphs = append(plainParagraphs, text)

		if level := headingLevel(paragraphStyle(para)); level > 0 {
			sb.WriteString(strings.Repeat("#", level))
			sb.WriteString(" ")
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	title := untitled
	if len(plainParagraphs) > 0 {
		title = truncateRunes(plainParagraphs[0], maxTitleRunes)
	} else if stem := fileStem(filename); stem != "" {
		title = truncateRunes(stem, maxTitleRunes)
	}

	summarySource := plainParagraphs
	if len(summarySource) > 3 {
		summarySource = summarySource[:3]
	}
	summary := truncateRunes(strings.Join(summarySource, " "), maxSummaryRunes)

	pageCount := len(paragraphs) / paragraphsPerPage
	if pageCount == 0 && len(paragraphs) > 0 {
		pageCount = 1
	}

	return &schema.ParseResult{
		Content:   sb.String(),
		Title:     title,
		Summary:   summary,
		PageCount: pageCount,
	}, nil
}

// paragraphStyle returns the paragraph's style ID, empty when unstyled.
func paragraphStyle(para document.Paragraph) string {
	ct := para.X()
	if ct == nil || ct.PPr == nil || ct.PPr.PStyle == nil {
		return ""
	}
	return ct.PPr.PStyle.ValAttr
}

// headingLevel maps Word heading style IDs ("Heading1", "heading 2") to a
// markdown heading level. Non-heading styles return 0.
func headingLevel(styleID string) int {
	lower := strings.ToLower(styleID)
	if !strings.HasPrefix(lower, "heading") {
		return 0
	}
	rest := strings.TrimSpace(strings.TrimPrefix(lower, "heading"))
	level, err := strconv.Atoi(rest)
	if err != nil || level < 1 || level > 6 {
		return 2
	}
	return level
}

// compile-time check to ensure DocxParser implements the DocumentParser interface
var _ interfaces.DocumentParser = (*DocxParser)(nil)
