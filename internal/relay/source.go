package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/cord/internal/atomicfile"
	"tools.zach/dev/cord/internal/discord"
)

// ///////////////////////////////////////////////
// Source
// ///////////////////////////////////////////////

// Source is a directory of activity files. Each producer (typically one
// editor instance) owns one file whose name matches Pattern and whose content
// is a JSON [discord.Activity]. The most recently written file wins.
type Source struct {
	// Dir is the directory holding activity files.
	Dir string
	// Pattern is a doublestar glob matched against file names in Dir.
	Pattern string
	// Logger receives diagnostics about skipped files; nil means
	// slog.Default(). A Relay fills it with its own logger.
	Logger *slog.Logger
}

func (s Source) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Matches reports whether name (a path or base name) is an activity file.
func (s Source) Matches(name string) bool {
	ok, err := doublestar.Match(s.Pattern, filepath.Base(name))
	return err == nil && ok
}

// Latest returns the activity in the most recently modified matching file,
// ignoring files older than maxAge when maxAge > 0. It reports false when no
// usable file exists. Unreadable or malformed files are skipped.
func (s Source) Latest(maxAge time.Duration) (discord.Activity, string, bool, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return discord.Activity{}, "", false, nil
		}
		return discord.Activity{}, "", false, fmt.Errorf("reading activity dir: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !s.Matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().Before(cutoff) {
			continue
		}
		found = append(found, candidate{filepath.Join(s.Dir, e.Name()), info.ModTime()})
	}

	// Newest first; fall through to older files when the newest is unusable.
	slices.SortFunc(found, func(a, b candidate) int { return b.mod.Compare(a.mod) })
	for _, c := range found {
		a, err := ReadActivity(c.path)
		if err != nil {
			s.logger().Debug("skipping unusable activity file", "path", c.path, "error", err)
			continue
		}
		return a, c.path, true, nil
	}
	return discord.Activity{}, "", false, nil
}

// ///////////////////////////////////////////////
// Activity Files
// ///////////////////////////////////////////////

// ReadActivity decodes the activity file at path.
func ReadActivity(path string) (discord.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return discord.Activity{}, err
	}
	var a discord.Activity
	if err := json.Unmarshal(data, &a); err != nil {
		return discord.Activity{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return a, nil
}

// WriteActivity atomically replaces the activity file at path, creating its
// directory if needed.
func WriteActivity(path string, a discord.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling activity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create activity dir: %w", err)
	}
	return atomicfile.Write(path, data, 0o644)
}
