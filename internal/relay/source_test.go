// Tests for activity sources: name matching, newest-file selection with
// staleness and unusable files, and activity file round-trips.
package relay

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tools.zach/dev/cord/internal/discord"
)

// writeAt writes an activity file and sets its modification time.
func writeAt(t *testing.T, path string, a discord.Activity, mod time.Time) {
	t.Helper()
	if err := WriteActivity(path, a); err != nil {
		t.Fatalf("WriteActivity: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

// ///////////////////////////////////////////////
// Matches
// ///////////////////////////////////////////////

func TestSourceMatches(t *testing.T) {
	src := Source{Pattern: "activity.*.json"}
	tests := []struct {
		name string
		want bool
	}{
		{"activity.nvim.json", true},
		{filepath.Join("some", "dir", "activity.42.json"), true},
		{"activity.json", false},
		{".activity.nvim.json.tmp123", false},
		{"activity.nvim.json.bak", false},
		{"other.json", false},
	}
	for _, tt := range tests {
		if got := src.Matches(tt.name); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSourceMatchesBadPattern(t *testing.T) {
	src := Source{Pattern: "activity.[.json"}
	if src.Matches("activity.[.json") {
		t.Error("invalid pattern should match nothing")
	}
}

// ///////////////////////////////////////////////
// Latest
// ///////////////////////////////////////////////

func TestLatest(t *testing.T) {
	now := time.Now()
	older := discord.Activity{Details: "older"}
	newer := discord.Activity{Details: "newer"}

	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string)
		maxAge  time.Duration
		want    string // Details of the expected activity; "" means none
		wantErr bool
	}{
		{
			name:  "empty dir",
			setup: func(*testing.T, string) {},
		},
		{
			name: "newest wins",
			setup: func(t *testing.T, dir string) {
				writeAt(t, filepath.Join(dir, "activity.a.json"), newer, now.Add(-time.Minute))
				writeAt(t, filepath.Join(dir, "activity.b.json"), older, now.Add(-time.Hour))
			},
			want: "newer",
		},
		{
			name: "non-matching files ignored",
			setup: func(t *testing.T, dir string) {
				writeAt(t, filepath.Join(dir, "activity.a.json"), older, now.Add(-time.Hour))
				writeAt(t, filepath.Join(dir, "notes.json"), newer, now)
			},
			want: "older",
		},
		{
			name: "stale files ignored",
			setup: func(t *testing.T, dir string) {
				writeAt(t, filepath.Join(dir, "activity.a.json"), older, now.Add(-2*time.Hour))
			},
			maxAge: time.Hour,
		},
		{
			name: "zero max age keeps stale files",
			setup: func(t *testing.T, dir string) {
				writeAt(t, filepath.Join(dir, "activity.a.json"), older, now.Add(-48*time.Hour))
			},
			want: "older",
		},
		{
			name: "malformed newest falls back to older",
			setup: func(t *testing.T, dir string) {
				writeAt(t, filepath.Join(dir, "activity.a.json"), older, now.Add(-time.Hour))
				bad := filepath.Join(dir, "activity.b.json")
				os.WriteFile(bad, []byte("{not json"), 0o644)
				os.Chtimes(bad, now, now)
			},
			want: "older",
		},
		{
			name: "directories ignored",
			setup: func(t *testing.T, dir string) {
				os.Mkdir(filepath.Join(dir, "activity.d.json"), 0o755)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			src := Source{Dir: dir, Pattern: "activity.*.json"}

			a, path, ok, err := src.Latest(tt.maxAge)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Latest: %v", err)
			}
			if tt.want == "" {
				if ok {
					t.Fatalf("got %+v from %s, want none", a, path)
				}
				return
			}
			if !ok {
				t.Fatal("got none, want an activity")
			}
			if a.Details != tt.want {
				t.Errorf("Details = %q, want %q", a.Details, tt.want)
			}
			if filepath.Dir(path) != dir {
				t.Errorf("path = %q, want a file in %q", path, dir)
			}
		})
	}
}

func TestLatestMissingDir(t *testing.T) {
	src := Source{Dir: filepath.Join(t.TempDir(), "absent"), Pattern: "*.json"}
	_, _, ok, err := src.Latest(0)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatal("missing dir should yield no activity")
	}
}

func TestLatestDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0o644)
	src := Source{Dir: file, Pattern: "*.json"}
	if _, _, _, err := src.Latest(0); err == nil {
		t.Fatal("expected error when Dir is a file")
	}
}

func TestLatestLogsSkippedFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "activity.bad.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var buf bytes.Buffer
	src := Source{
		Dir:     dir,
		Pattern: "activity.*.json",
		Logger:  slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	if _, _, ok, err := src.Latest(0); err != nil || ok {
		t.Fatalf("Latest = ok %v, err %v; want no activity", ok, err)
	}
	if !strings.Contains(buf.String(), "skipping unusable activity file") {
		t.Errorf("log = %q, want skipped file entry", buf.String())
	}
}

// ///////////////////////////////////////////////
// Activity Files
// ///////////////////////////////////////////////

func TestWriteReadActivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity.x.json")
	want := discord.Activity{
		Details:    "Editing main.go",
		State:      "Workspace: cord",
		Timestamps: &discord.Timestamps{Start: 1700000000},
		Assets:     &discord.Assets{LargeImage: "go", LargeText: "Go"},
		Buttons:    []discord.Button{{Label: "Repo", URL: "https://example.com/cord"}},
	}

	if err := WriteActivity(path, want); err != nil {
		t.Fatalf("WriteActivity: %v", err)
	}
	got, err := ReadActivity(path)
	if err != nil {
		t.Fatalf("ReadActivity: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadActivityErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadActivity(filepath.Join(dir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("missing file: got %v, want not-exist", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("[]"), 0o644)
	if _, err := ReadActivity(bad); err == nil {
		t.Error("expected parse error")
	}
}
