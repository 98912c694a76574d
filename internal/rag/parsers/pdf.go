package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
	"github.com/choudian/document-QA-system/internal/rag/schema"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// PDFParser implements the DocumentParser interface for PDF files. Each page
// becomes a markdown section headed by its page number.
type PDFParser struct {
	log *logger.Logger
}

// NewPDFParser creates a new PDFParser.
func NewPDFParser() *PDFParser {
	return &PDFParser{log: logger.New("parser.pdf")}
}

// Parse extracts the plain text of every page. Pages that fail text
// extraction are skipped rather than failing the whole document.
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (*schema.ParseResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	var sections []string
	firstPageText := ""

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.log.WithError(err).WithField("page", i).Warn("提取 PDF 页面文本失败，跳过该页")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if firstPageText == "" {
			firstPageText = text
		}
		sections = append(sections, fmt.Sprintf("## 第 %d 页\n\n%s\n\n", i, text))
	}

	content := strings.Join(sections, "\n")

	title := untitled
	for _, line := range strings.Split(firstPageText, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			title = truncateRunes(line, maxTitleRunes)
			break
		}
	}
	if title == untitled {
		if stem := fileStem(filename); stem != "" {
			title = truncateRunes(stem, maxTitleRunes)
		}
	}

	return &schema.ParseResult{
		Content:   content,
		Title:     title,
		Summary:   truncateRunes(strings.TrimSpace(firstPageText), maxSummaryRunes),
		PageCount: total,
	}, nil
}

// compile-time check to ensure PDFParser implements the DocumentParser interface
var _ interfaces.DocumentParser = (*PDFParser)(nil)
