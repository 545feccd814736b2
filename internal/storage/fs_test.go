package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

var pngBytes = []byte("\x89PNG\r\n\x1a\nrest")

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("view.png", pngBytes); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("view.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(pngBytes) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("YourWindow/2024/a.jpg", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("YourWindow/2024/a.jpg")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteEmptyKey(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("del.png", []byte("bye"))
	if err := s.Delete("del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.png"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("a.png", []byte("a"))
	_ = s.Write("YourWindow/b.jpg", []byte("b"))
	_ = os.WriteFile(filepath.Join(s.Root(), tempPrefix+"123"), []byte("partial"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	keys := map[string]bool{}
	for _, it := range items {
		keys[it.Key] = true
	}
	if !keys["a.png"] || !keys["YourWindow/b.jpg"] {
		t.Errorf("keys = %v", keys)
	}

	items, err = s.List("missing")
	if err != nil || len(items) != 0 {
		t.Errorf("List(missing) = %v, %v", items, err)
	}
}

func TestKeyFor(t *testing.T) {
	s := tempStore(t)
	key, err := s.KeyFor(filepath.Join(s.Root(), "YourWindow", "x.png"))
	if err != nil || key != "YourWindow/x.png" {
		t.Errorf("KeyFor = %q, %v", key, err)
	}
	if _, err := s.KeyFor(filepath.Dir(s.Root())); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("atomic.png", []byte("original"))
	if err := s.Write("atomic.png", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.png")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "yourview-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
