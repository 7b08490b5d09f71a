// Package paths centralizes the file and directory names used by cord.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory entries.
const (
	PIDFile     = "cord.pid"
	ConfigFile  = "config.toml"
	LogFile     = "cord.log"
	ActivityDir = "activity"
)

const (
	BinaryName = "cord"
	DataDirRel = ".cord" // relative to $HOME
)

// ActivityPattern is the default glob for activity files inside ActivityDir.
// Each producer writes its own file, e.g. "activity.nvim-4242.json".
const ActivityPattern = "activity.*.json"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Activity returns the default directory scanned for activity files.
func (d DataDir) Activity() string { return filepath.Join(d.Root, ActivityDir) }
