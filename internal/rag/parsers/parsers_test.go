package parsers

import (
	"context"
	"strings"
	"testing"
)

func TestTextParser(t *testing.T) {
	parser := NewTextParser()

	content := "年度报告\n第一章 概述\n这里是正文内容。"
	result, err := parser.Parse(context.Background(), []byte("\uFEFF"+content), "report.txt")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Content != content {
		t.Errorf("Content = %q, want BOM stripped original", result.Content)
	}
	if result.Title != "年度报告" {
		t.Errorf("Title = %q, want %q", result.Title, "年度报告")
	}
	if !strings.HasPrefix(result.Summary, "年度报告") {
		t.Errorf("Summary = %q, want prefix %q", result.Summary, "年度报告")
	}
	if result.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0", result.PageCount)
	}
}

func TestTextParser_Empty(t *testing.T) {
	parser := NewTextParser()
	result, err := parser.Parse(context.Background(), []byte("   \n  "), "empty.txt")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Title != untitled {
		t.Errorf("Title = %q, want %q", result.Title, untitled)
	}
	if result.Summary != "" {
		t.Errorf("Summary = %q, want empty", result.Summary)
	}
}

func TestTextParser_TitleTruncation(t *testing.T) {
	parser := NewTextParser()
	long := strings.Repeat("字", 600)
	result, err := parser.Parse(context.Background(), []byte(long), "long.txt")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len([]rune(result.Title)); got != maxTitleRunes {
		t.Errorf("Title length = %d runes, want %d", got, maxTitleRunes)
	}
	if got := len([]rune(result.Summary)); got != maxSummaryRunes {
		t.Errorf("Summary length = %d runes, want %d", got, maxSummaryRunes)
	}
}

func TestMarkdownParser_HeadingTitle(t *testing.T) {
	parser := NewMarkdownParser()

	content := "preamble\n\n# 使用指南\n\n正文第一段。\n\n```go\nfmt.Println(\"code\")\n```\n\n## 小节\n\n正文第二段。"
	result, err := parser.Parse(context.Background(), []byte(content), "guide.md")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Title != "使用指南" {
		t.Errorf("Title = %q, want %q", result.Title, "使用指南")
	}
	if strings.Contains(result.Summary, "fmt.Println") {
		t.Errorf("Summary %q should not contain code block content", result.Summary)
	}
	if strings.Contains(result.Summary, "小节") {
		t.Errorf("Summary %q should not contain heading text", result.Summary)
	}
	if result.Content != content {
		t.Error("Content should be the unmodified markdown")
	}
}

func TestMarkdownParser_FilenameFallback(t *testing.T) {
	parser := NewMarkdownParser()
	result, err := parser.Parse(context.Background(), []byte("no headings here"), "notes/讲义.md")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Title != "讲义" {
		t.Errorf("Title = %q, want filename stem %q", result.Title, "讲义")
	}
}

func TestForType(t *testing.T) {
	cases := map[string]bool{
		"txt": true, "md": true, "markdown": true, "pdf": true,
		"word": true, "doc": true, "docx": true, "PDF": true,
		"xlsx": false, "": false,
	}
	for fileType, ok := range cases {
		_, err := ForType(fileType)
		if ok && err != nil {
			t.Errorf("ForType(%q) error = %v, want parser", fileType, err)
		}
		if !ok && err == nil {
			t.Errorf("ForType(%q) expected error, got parser", fileType)
		}
	}
}

func TestForFilename(t *testing.T) {
	parser, err := ForFilename("docs/手册.MD")
	if err != nil {
		t.Fatalf("ForFilename() error = %v", err)
	}
	if _, ok := parser.(*MarkdownParser); !ok {
		t.Errorf("ForFilename(.MD) = %T, want *MarkdownParser", parser)
	}

	if _, err := ForFilename("archive.zip"); err == nil {
		t.Error("ForFilename(.zip) expected error, got nil")
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("a.docx") {
		t.Error("IsSupported(a.docx) = false, want true")
	}
	if IsSupported("a.csv") {
		t.Error("IsSupported(a.csv) = true, want false")
	}
}
