package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/obridge/internal/models"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWritePreservesPermission(t *testing.T) {
	s := tempVault(t)
	full := filepath.Join(s.root, "p.md")
	if err := os.WriteFile(full, []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(full, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("p.md", []byte("b")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(full)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("sub/a.md", []byte("a"))
	_ = s.Write("readme.txt", []byte("not md"))
	_ = s.Write(".obsidian/workspace.md", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].Path != "b.md" || items[0].Name != "b" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Path != "sub/a.md" || items[1].Name != "a" || items[1].Kind != models.KindFile {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestStat(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("dir/Note.md", []byte("x"))

	e, err := s.Stat("dir/Note.md")
	if err != nil {
		t.Fatalf("Stat file: %v", err)
	}
	if !e.IsFile() || e.Name != "Note" || e.Path != "dir/Note.md" {
		t.Errorf("file entry = %+v", e)
	}

	e, err = s.Stat("dir")
	if err != nil {
		t.Fatalf("Stat dir: %v", err)
	}
	if e.Kind != models.KindDirectory || e.Path != "dir" || e.Name != "dir" {
		t.Errorf("dir entry = %+v", e)
	}

	if _, err := s.Stat("missing.md"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Read(%q) err = %v, want ErrInvalidPath", p, err)
		}
		if _, err := s.Stat(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Stat(%q) err = %v, want ErrInvalidPath", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".obridge-tmp-*"))
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
	f, _ := os.CreateTemp("", "obridge-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
