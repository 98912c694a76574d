package storage

import (
	"context"
	"errors"
	"testing"
)

func TestGeneratePath(t *testing.T) {
	cases := []struct {
		name       string
		folderPath string
		filename   string
		want       string
	}{
		{"root folder", "", "a.txt", "t1/u1/a.txt"},
		{"nested folder", "docs/2024", "a.txt", "t1/u1/docs/2024/a.txt"},
		{"folder with slashes", "/docs/", "a.txt", "t1/u1/docs/a.txt"},
		{"filename traversal stripped", "", "../../etc/passwd", "t1/u1/passwd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GeneratePath("t1", "u1", tc.folderPath, tc.filename); got != tc.want {
				t.Errorf("GeneratePath() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFilesystemStorage_RoundTrip(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage() error = %v", err)
	}
	ctx := context.Background()

	path := "t1/u1/docs/report.txt"
	content := []byte("文件内容")

	if err := fs.Save(ctx, path, content); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	exists, err := fs.Exists(ctx, path)
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v, want true, nil", exists, err)
	}

	got, err := fs.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Read() = %q, want %q", got, content)
	}

	if err := fs.Delete(ctx, path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	exists, err = fs.Exists(ctx, path)
	if err != nil || exists {
		t.Errorf("Exists() after delete = %v, %v, want false, nil", exists, err)
	}
}

func TestFilesystemStorage_ReadMissing(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage() error = %v", err)
	}
	_, err = fs.Read(context.Background(), "t1/u1/missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestFilesystemStorage_RejectsEscapingPath(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage() error = %v", err)
	}
	if err := fs.Save(context.Background(), "../outside.txt", []byte("x")); err == nil {
		t.Error("Save() with escaping path expected error, got nil")
	}
}
