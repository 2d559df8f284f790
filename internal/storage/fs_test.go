package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/adcanvas/internal/apperr"
)

func tempDir(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempDir(t)
	content := []byte(`{"nodes":[],"edges":[]}`)
	if err := s.Write("launch.banana", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("launch.banana")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempDir(t)
	if err := s.Write("archive/2025/q3.banana", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("archive/2025/q3.banana")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("del.banana", []byte("bye"))
	if err := s.Delete("del.banana"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.banana"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read deleted: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete("del.banana"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete twice: err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("a.banana", []byte("a"))
	_ = s.Write("sub/b.json", []byte("bb"))
	_ = s.Write("readme.txt", []byte("not a project"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" || it.Size == 0 || it.UpdatedAt.IsZero() {
			t.Errorf("incomplete meta: %+v", it)
		}
	}
}

func TestListCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, ".banana")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Write("a.banana", []byte("a"))
	_ = s.Write("b.json", []byte("b"))
	items, _ := s.List("")
	if len(items) != 1 || items[0].Path != "a.banana" {
		t.Errorf("items = %+v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDir(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.banana",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("read %q: err = %v", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("atomic.banana", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.banana", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.banana")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".adcanvas-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/adcanvas-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "adcanvas-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("canvas"))
	if len(a) != 64 || a != Checksum([]byte("canvas")) {
		t.Errorf("checksum = %q", a)
	}
	if a == Checksum([]byte("canvas2")) {
		t.Error("different content, same checksum")
	}
}
