// write_test.go tests [Write] and [WriteNew]: content and permissions,
// replacement of existing files, and cleanup of temp files on failure.

package atomicfile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.nvim.json")

	if err := Write(path, []byte(`{"details":"one"}`), 0o600); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, []byte(`{"details":"two"}`), 0o600); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != `{"details":"two"}` {
		t.Fatalf("got %q", got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("perm = %o, want 600", perm)
		}
	}
}

func TestWrite_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	for range 5 {
		if err := Write(filepath.Join(dir, "config.toml"), []byte("x"), 0o644); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.toml" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected directory contents: %v", names)
	}
}

func TestWrite_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "file.json")
	if err := Write(path, []byte("x"), 0o644); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestWrite_TargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Write(target, []byte("x"), 0o644); err == nil {
		t.Fatal("expected error when renaming over a non-empty directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestWriteNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	wrote, err := WriteNew(path, []byte("first"), 0o644)
	if err != nil || !wrote {
		t.Fatalf("WriteNew on missing file = (%v, %v), want (true, nil)", wrote, err)
	}

	wrote, err = WriteNew(path, []byte("second"), 0o644)
	if err != nil || wrote {
		t.Fatalf("WriteNew on existing file = (%v, %v), want (false, nil)", wrote, err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "first" {
		t.Fatalf("existing file overwritten: %q", got)
	}
}
