package splitters

import (
	"errors"
	"strings"
	"testing"

	"github.com/choudian/document-QA-system/internal/models"
)

func lengthConfig(size, overlap int) *models.DocumentConfig {
	return &models.DocumentConfig{ChunkSize: size, ChunkOverlap: overlap, SplitMethod: models.SplitByLength}
}

// reconstruct rebuilds the original text from length-mode chunks by dropping
// the leading overlap runes of every chunk after the first.
func reconstruct(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk)
		if i > 0 {
			if len(runes) <= overlap {
				continue
			}
			runes = runes[overlap:]
		}
		sb.WriteString(string(runes))
	}
	return sb.String()
}

func TestSplitByLength_Reconstruction(t *testing.T) {
	s := NewTextSplitter()
	text := strings.Repeat("abcdefghij", 37) // 370 runes, no whitespace-only windows

	cases := []struct{ size, overlap int }{
		{100, 0},
		{100, 25},
		{50, 49},
		{7, 3},
		{400, 100}, // single chunk
	}

	for _, tc := range cases {
		chunks, err := s.Split(text, lengthConfig(tc.size, tc.overlap))
		if err != nil {
			t.Fatalf("Split(size=%d, overlap=%d) error = %v", tc.size, tc.overlap, err)
		}
		if got := reconstruct(chunks, tc.overlap); got != text {
			t.Errorf("size=%d overlap=%d: reconstruction mismatch, got %d runes want %d", tc.size, tc.overlap, len(got), len(text))
		}
		for i, c := range chunks {
			if strings.TrimSpace(c) == "" {
				t.Errorf("size=%d overlap=%d: chunk %d is whitespace-only", tc.size, tc.overlap, i)
			}
		}
	}
}

func TestSplitByLength_OverlapValidation(t *testing.T) {
	s := NewTextSplitter()

	for _, tc := range []struct{ size, overlap int }{{100, 100}, {100, 150}, {5000, 6000}} {
		_, err := s.Split("some text", lengthConfig(tc.size, tc.overlap))
		if !errors.Is(err, ErrConfig) {
			t.Errorf("Split(size=%d, overlap=%d) error = %v, want ErrConfig", tc.size, tc.overlap, err)
		}
	}
}

func TestSplit_FixedAliasesLength(t *testing.T) {
	s := NewTextSplitter()
	cfg := &models.DocumentConfig{ChunkSize: 4, ChunkOverlap: 0, SplitMethod: "fixed"}

	chunks, err := s.Split("abcdefgh", cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "abcd" || chunks[1] != "efgh" {
		t.Errorf("Split() = %v, want [abcd efgh]", chunks)
	}
}

func TestSplit_UnknownMethod(t *testing.T) {
	s := NewTextSplitter()
	cfg := &models.DocumentConfig{ChunkSize: 10, SplitMethod: "bogus"}
	if _, err := s.Split("text", cfg); !errors.Is(err, ErrConfig) {
		t.Errorf("Split() error = %v, want ErrConfig", err)
	}
}

func TestSplitByParagraph_MergesUpToLimit(t *testing.T) {
	s := NewTextSplitter()
	cfg := &models.DocumentConfig{ChunkSize: 30, SplitMethod: models.SplitByParagraph}

	text := "first para\n\nsecond one\n\nthird paragraph here\n\nfourth"
	chunks, err := s.Split(text, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	// "first para" + "second one" merge (10+10+2 <= 30); the third (20 runes)
	// does not fit on top of them; the fourth merges with the third.
	want := []string{"first para\n\nsecond one", "third paragraph here\n\nfourth"}
	if len(chunks) != len(want) {
		t.Fatalf("Split() = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplitByParagraph_OversizedParagraphFallsBackToLength(t *testing.T) {
	s := NewTextSplitter()
	cfg := &models.DocumentConfig{ChunkSize: 20, SplitMethod: models.SplitByParagraph}

	long := strings.Repeat("x", 55)
	chunks, err := s.Split("short\n\n"+long, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected the oversized paragraph to be length-split, got %v", chunks)
	}
	if chunks[0] != "short" {
		t.Errorf("chunk 0 = %q, want %q", chunks[0], "short")
	}
	for i, c := range chunks[1:] {
		if runeLen(c) > 20 {
			t.Errorf("chunk %d exceeds max size: %d runes", i+1, runeLen(c))
		}
	}
}

func TestSplitByKeyword(t *testing.T) {
	s := NewTextSplitter()
	kw := "###"
	cfg := &models.DocumentConfig{ChunkSize: 25, SplitMethod: models.SplitByKeyword, SplitKeyword: &kw}

	chunks, err := s.Split("alpha###beta###gamma delta epsilon", cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	// "alpha"+"###"+"beta" fits in 25; adding "gamma delta epsilon" (19) does not.
	want := []string{"alpha###beta", "gamma delta epsilon"}
	if len(chunks) != len(want) {
		t.Fatalf("Split() = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplitByKeyword_EmptyKeyword(t *testing.T) {
	s := NewTextSplitter()
	empty := ""
	cfg := &models.DocumentConfig{ChunkSize: 25, SplitMethod: models.SplitByKeyword, SplitKeyword: &empty}
	if _, err := s.Split("text", cfg); !errors.Is(err, ErrConfig) {
		t.Errorf("Split() error = %v, want ErrConfig", err)
	}
	cfg.SplitKeyword = nil
	if _, err := s.Split("text", cfg); !errors.Is(err, ErrConfig) {
		t.Errorf("Split() with nil keyword error = %v, want ErrConfig", err)
	}
}

func TestSplit_EmptyTextYieldsNoChunks(t *testing.T) {
	s := NewTextSplitter()
	chunks, err := s.Split("", lengthConfig(100, 10))
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Split(\"\") = %v, want no chunks", chunks)
	}
}
