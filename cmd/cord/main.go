// Package main implements cord, a daemon that relays activity files written
// by local tools to Discord Rich Presence over the desktop client's IPC socket.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	rootpkg "tools.zach/dev/cord"
	"tools.zach/dev/cord/internal/atomicfile"
	"tools.zach/dev/cord/internal/config"
	"tools.zach/dev/cord/internal/discord"
	"tools.zach/dev/cord/internal/logger"
	"tools.zach/dev/cord/internal/paths"
	"tools.zach/dev/cord/internal/relay"
	"tools.zach/dev/cord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// A bare go build falls back to the VCS info embedded by the toolchain.
var version = "dev"

// resolveVersion returns [version] when set via ldflags, otherwise a
// "dev+<hash>" tag built from the embedded VCS revision.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token proving ownership of the
// PID file, so [removePID] only deletes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID opens the PID file, takes the advisory lock and writes
// "PID:TOKEN". The handle must stay open for the daemon's lifetime to hold
// the lock; pass it to [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock and removes the PID file if it still carries
// token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	_, owner, ok := strings.Cut(string(data), ":")
	if ok && owner == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another instance holds the PID file lock. A
// file whose lock can be taken belongs to a dead instance and is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		head, _, _ := strings.Cut(string(data), ":")
		if p, convErr := strconv.Atoi(head); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns ~/.cord, or ./.cord when the home directory cannot
// be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the parsed command line.
type flags struct {
	dataDir    string
	clientID   string
	logLevel   string
	foreground bool

	// publish
	details    string
	state      string
	largeImage string
	largeText  string
	smallImage string
	smallText  string
	elapsed    bool
	buttons    []string
}

func newFlagSet(f *flags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cord", pflag.ContinueOnError)
	fs.StringVar(&f.dataDir, "data-dir", defaultDataDir(), "data directory for config, logs and activity files")
	fs.StringVar(&f.clientID, "client-id", "", "Discord application ID (overrides discord.client_id)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides log.level)")
	fs.BoolVarP(&f.foreground, "foreground", "f", false, "mirror logs to stderr")

	fs.StringVar(&f.details, "details", "", "publish: first line of the presence")
	fs.StringVar(&f.state, "state", "", "publish: second line of the presence")
	fs.StringVar(&f.largeImage, "large-image", "", "publish: large image asset key or URL")
	fs.StringVar(&f.largeText, "large-text", "", "publish: large image tooltip")
	fs.StringVar(&f.smallImage, "small-image", "", "publish: small image asset key or URL")
	fs.StringVar(&f.smallText, "small-text", "", "publish: small image tooltip")
	fs.BoolVar(&f.elapsed, "elapsed", false, "publish: show time elapsed since now")
	fs.StringArrayVar(&f.buttons, "button", nil, "publish: button as LABEL=URL (repeatable, max 2)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `cord relays activity files to Discord Rich Presence.

Usage:
  cord [flags]                       run the relay daemon
  cord publish NAME [publish flags]  write activity file NAME
  cord clear NAME                    remove activity file NAME
  cord logs [N]                      print the last N log lines (default 50)
  cord version                       print the version

Flags:
%s`, fs.FlagUsages())
	}
	return fs
}

// run parses args and dispatches to the selected command.
func run(args []string, stdout io.Writer) error {
	var f flags
	fs := newFlagSet(&f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	dp := DataPaths{Root: f.dataDir}

	rest := fs.Args()
	cmd := ""
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "":
		return runDaemon(dp, fs, &f)
	case "version":
		fmt.Fprintln(stdout, resolveVersion())
		return nil
	case "logs":
		return runLogs(dp, rest, stdout)
	case "publish":
		return runPublish(dp, fs, &f, rest)
	case "clear":
		return runClear(dp, fs, &f, rest)
	default:
		return fmt.Errorf("unknown command %q (see cord --help)", cmd)
	}
}

// loadConfig loads the data directory's config and applies flag overrides.
func loadConfig(dp DataPaths, fs *pflag.FlagSet, f *flags) (*config.Config, error) {
	cfg, err := config.Load(dp.Root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if fs.Changed("client-id") {
		cfg.Discord.ClientID = f.clientID
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ///////////////////////////////////////////////
// Daemon
// ///////////////////////////////////////////////

// runDaemon runs the relay until SIGINT or SIGTERM.
func runDaemon(dp DataPaths, fs *pflag.FlagSet, f *flags) error {
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if alive, pid := checkStalePID(dp); alive {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	if _, err := atomicfile.WriteNew(dp.Config(), rootpkg.DefaultConfigTOML, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := loadConfig(dp, fs, f)
	if err != nil {
		return err
	}

	var mirror io.Writer
	if f.foreground {
		mirror = os.Stderr
	}
	log, logCloser := logger.New(logger.Options{
		Path:      dp.Log(),
		Level:     logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Mirror:    mirror,
	})
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	log.Info("cord starting", "version", ver, "data_dir", dp.Root)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		logger.Fail(log, "failed to write PID file", "error", err)
		return err
	}
	defer removePID(dp, token, pidFile)

	clientID, err := cfg.ClientID()
	if err != nil {
		return err
	}

	src := relay.Source{Dir: cfg.ActivityDir(dp.Root), Pattern: cfg.Relay.Pattern}
	if err := os.MkdirAll(src.Dir, 0o755); err != nil {
		logger.Fail(log, "failed to create activity dir", "path", src.Dir, "error", err)
		return fmt.Errorf("create activity dir: %w", err)
	}

	watcher := relay.NewWatcher(src, cfg.PollInterval())
	defer watcher.Close()
	if watcher.Polling() {
		log.Info("using polling mode for file watching")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-signalChannel()
		log.Info("received shutdown signal")
		cancel()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("update check panic", "error", r)
			}
		}()
		update.Check(ctx, cfg.Update.ManifestURL, ver)
	}()

	r := relay.New(relay.Options{
		Source:            src,
		StaleAfter:        cfg.StaleAfter(),
		PollInterval:      cfg.PollInterval(),
		ReconnectInterval: cfg.ReconnectInterval(),
		Dial:              relay.DialDiscord(clientID),
		Logger:            log,
	})
	if err := r.Run(ctx, watcher.Events()); err != nil {
		logger.Fail(log, "relay stopped", "error", err)
		return err
	}
	log.Info("cord stopped")
	return nil
}

// ///////////////////////////////////////////////
// Logs
// ///////////////////////////////////////////////

const defaultLogLines = 50

// runLogs prints the tail of the log file.
func runLogs(dp DataPaths, args []string, stdout io.Writer) error {
	n := defaultLogLines
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid line count %q", args[0])
		}
		n = v
	}
	lines, err := logger.ReadTail(dp.Log(), n)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no log file at %s", dp.Log())
		}
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// ///////////////////////////////////////////////
// Activity Files
// ///////////////////////////////////////////////

// maxButtons is the number of buttons Discord displays.
const maxButtons = 2

// activityPath returns the activity file for a producer name, checking that
// the relay will pick it up.
func activityPath(cfg *config.Config, dp DataPaths, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid activity name %q", name)
	}
	src := relay.Source{Dir: cfg.ActivityDir(dp.Root), Pattern: cfg.Relay.Pattern}
	file := "activity." + name + ".json"
	if !src.Matches(file) {
		return "", fmt.Errorf("%s does not match relay.pattern %q", file, cfg.Relay.Pattern)
	}
	return filepath.Join(src.Dir, file), nil
}

// parseButtons converts LABEL=URL flags into buttons.
func parseButtons(specs []string) ([]discord.Button, error) {
	if len(specs) > maxButtons {
		return nil, fmt.Errorf("at most %d buttons are allowed, got %d", maxButtons, len(specs))
	}
	var buttons []discord.Button
	for _, s := range specs {
		label, url, ok := strings.Cut(s, "=")
		if !ok || label == "" || url == "" {
			return nil, fmt.Errorf("invalid button %q, want LABEL=URL", s)
		}
		buttons = append(buttons, discord.Button{Label: label, URL: url})
	}
	return buttons, nil
}

// buildActivity assembles an activity from the publish flags, leaving
// optional sections nil when none of their fields is set.
func buildActivity(f *flags, now time.Time) (discord.Activity, error) {
	a := discord.Activity{Details: f.details, State: f.state}
	if f.elapsed {
		a.Timestamps = &discord.Timestamps{Start: now.Unix()}
	}
	if f.largeImage != "" || f.largeText != "" || f.smallImage != "" || f.smallText != "" {
		a.Assets = &discord.Assets{
			LargeImage: f.largeImage,
			LargeText:  f.largeText,
			SmallImage: f.smallImage,
			SmallText:  f.smallText,
		}
	}
	buttons, err := parseButtons(f.buttons)
	if err != nil {
		return discord.Activity{}, err
	}
	a.Buttons = buttons
	if a.Equal(discord.Activity{}) {
		return discord.Activity{}, errors.New("nothing to publish: set at least one of --details, --state, or an asset")
	}
	return a, nil
}

// runPublish writes the activity file for args[0].
func runPublish(dp DataPaths, fs *pflag.FlagSet, f *flags, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cord publish NAME [publish flags]")
	}
	cfg, err := loadConfig(dp, fs, f)
	if err != nil {
		return err
	}
	path, err := activityPath(cfg, dp, args[0])
	if err != nil {
		return err
	}
	a, err := buildActivity(f, time.Now())
	if err != nil {
		return err
	}
	return relay.WriteActivity(path, a)
}

// runClear removes the activity file for args[0]. A missing file is not an
// error.
func runClear(dp DataPaths, fs *pflag.FlagSet, f *flags, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cord clear NAME")
	}
	cfg, err := loadConfig(dp, fs, f)
	if err != nil {
		return err
	}
	path, err := activityPath(cfg, dp, args[0])
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove activity file: %w", err)
	}
	return nil
}
