package parsers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/choudian/document-QA-system/internal/rag/interfaces"
)

// Limits applied to extracted metadata.
const (
	maxTitleRunes   = 500
	maxSummaryRunes = 200
)

// untitled is used when no title can be extracted from the content.
const untitled = "无标题"

var parserByType = map[string]func() interfaces.DocumentParser{
	"txt":      func() interfaces.DocumentParser { return NewTextParser() },
	"md":       func() interfaces.DocumentParser { return NewMarkdownParser() },
	"markdown": func() interfaces.DocumentParser { return NewMarkdownParser() },
	"pdf":      func() interfaces.DocumentParser { return NewPDFParser() },
	"word":     func() interfaces.DocumentParser { return NewDocxParser() },
	"doc":      func() interfaces.DocumentParser { return NewDocxParser() },
	"docx":     func() interfaces.DocumentParser { return NewDocxParser() },
}

// ForType returns the parser registered for a file type keyword.
func ForType(fileType string) (interfaces.DocumentParser, error) {
	factory, ok := parserByType[strings.ToLower(fileType)]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	return factory(), nil
}

// ForFilename returns the parser matching the file's extension.
func ForFilename(filename string) (interfaces.DocumentParser, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return ForType(ext)
}

// IsSupported reports whether the file's extension has a registered parser.
func IsSupported(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	_, ok := parserByType[ext]
	return ok
}

// SupportedTypes lists the recognized file type keywords.
func SupportedTypes() []string {
	types := make([]string, 0, len(parserByType))
	for t := range parserByType {
		types = append(types, t)
	}
	return types
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// fileStem returns the filename without its directory or extension.
func fileStem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
