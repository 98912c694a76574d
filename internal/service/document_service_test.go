package service

import (
	"sync"
	"testing"
)

func TestFileTypeByExtension(t *testing.T) {
	cases := map[string]string{
		"notes.txt":     "txt",
		"README.md":     "md",
		"notes.MARKDOWN": "md",
		"paper.PDF":     "pdf",
		"report.docx":   "word",
		"legacy.doc":    "word",
		"image.png":     "",
		"noext":         "",
	}
	for filename, want := range cases {
		if got := fileTypeByExtension(filename); got != want {
			t.Errorf("fileTypeByExtension(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestChainKey(t *testing.T) {
	folder := "f-1"
	if got := chainKey("t1", "u1", &folder, "a.txt"); got != "t1/u1/f-1/a.txt" {
		t.Errorf("chainKey = %q", got)
	}
	if got := chainKey("t1", "u1", nil, "a.txt"); got != "t1/u1/root/a.txt" {
		t.Errorf("chainKey nil folder = %q", got)
	}
	empty := ""
	if got := chainKey("t1", "u1", &empty, "a.txt"); got != "t1/u1/root/a.txt" {
		t.Errorf("chainKey empty folder = %q", got)
	}
}

func TestKeyedMutexSerializes(t *testing.T) {
	km := newKeyedMutex()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same-key")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	<-done // key "b" must not block on key "a"
	unlockA()
}

func TestMarkdownPathFor(t *testing.T) {
	cases := map[string]string{
		"t1/u1/report.pdf":       "t1/u1/report.md",
		"t1/u1/archive/notes":    "t1/u1/archive/notes.md",
		"t1/u1/v2.0/report.docx": "t1/u1/v2.0/report.md",
	}
	for in, want := range cases {
		if got := markdownPathFor(in); got != want {
			t.Errorf("markdownPathFor(%q) = %q, want %q", in, got, want)
		}
	}
}
