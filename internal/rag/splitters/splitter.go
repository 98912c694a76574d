package splitters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/interfaces"
)

// ErrConfig marks an invalid chunking policy (overlap >= size, empty keyword,
// unknown split method). Callers reject such configs before any I/O.
var ErrConfig = errors.New("invalid split config")

// TextSplitter implements the Splitter interface. It splits on rune
// boundaries so multi-byte text is never cut mid-character.
type TextSplitter struct{}

// NewTextSplitter creates a new TextSplitter.
func NewTextSplitter() *TextSplitter {
	return &TextSplitter{}
}

// Split dispatches on the config's split method and returns the ordered,
// non-empty chunks of text.
func (s *TextSplitter) Split(text string, cfg *models.DocumentConfig) ([]string, error) {
	method := cfg.SplitMethod
	// Older configs stored "fixed"; it maps to length mode.
	if method == "fixed" {
		method = models.SplitByLength
	}

	switch method {
	case models.SplitByLength:
		return s.splitByLength(text, cfg.ChunkSize, cfg.ChunkOverlap)
	case models.SplitByParagraph:
		return s.splitByParagraph(text, cfg.ChunkSize)
	case models.SplitByKeyword:
		if cfg.SplitKeyword == nil || *cfg.SplitKeyword == "" {
			return nil, fmt.Errorf("%w: split keyword is required for keyword mode", ErrConfig)
		}
		return s.splitByKeyword(text, *cfg.SplitKeyword, cfg.ChunkSize)
	default:
		return nil, fmt.Errorf("%w: unsupported split method %q", ErrConfig, cfg.SplitMethod)
	}
}

// splitByLength slides a window of chunkSize runes, advancing by
// chunkSize - chunkOverlap. Whitespace-only windows are dropped.
func (s *TextSplitter) splitByLength(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrConfig)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)", ErrConfig, chunkOverlap, chunkSize)
	}

	runes := []rune(text)
	step := chunkSize - chunkOverlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

// splitByParagraph merges consecutive blank-line-delimited paragraphs up to
// maxSize runes. A single paragraph exceeding the limit is split by length
// mode with overlap = size/4.
func (s *TextSplitter) splitByParagraph(text string, maxSize int) ([]string, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrConfig)
	}

	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	current := ""

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if runeLen(current)+runeLen(para)+2 <= maxSize {
			if current != "" {
				current += "\n\n" + para
			} else {
				current = para
			}
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if runeLen(para) > maxSize {
			sub, err := s.splitByLength(para, maxSize, maxSize/4)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, sub...)
			current = ""
		} else {
			current = para
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks, nil
}

// splitByKeyword splits on a literal keyword, re-merging adjacent pieces up
// to maxSize runes, with the same overflow handling as paragraph mode.
func (s *TextSplitter) splitByKeyword(text, keyword string, maxSize int) ([]string, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrConfig)
	}

	parts := strings.Split(text, keyword)

	var chunks []string
	current := ""

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if runeLen(current)+runeLen(keyword)+runeLen(part) <= maxSize {
			if current != "" {
				current += keyword + part
			} else {
				current = part
			}
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if runeLen(part) > maxSize {
			sub, err := s.splitByLength(part, maxSize, maxSize/4)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, sub...)
			current = ""
		} else {
			current = part
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks, nil
}

func runeLen(s string) int {
	return len([]rune(s))
}

// compile-time check to ensure TextSplitter implements the Splitter interface
var _ interfaces.Splitter = (*TextSplitter)(nil)
