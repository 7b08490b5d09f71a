package discord

import (
	"fmt"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Socket Discovery
// ///////////////////////////////////////////////

const (
	// socketPrefix is the file name prefix of every Discord IPC socket.
	socketPrefix = "discord-ipc"

	// fallbackSocketDir is used when none of socketDirVars is set.
	fallbackSocketDir = "/tmp"

	// maxIPCSlots is the number of socket indices Discord may listen on (0-9).
	maxIPCSlots = 10
)

// socketDirVars lists, in precedence order, the environment variables that
// may name the directory holding the IPC sockets.
var socketDirVars = []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"}

// LookupEnv reports the value of an environment variable and whether it is
// set. [os.LookupEnv] satisfies it.
type LookupEnv func(key string) (string, bool)

// SocketDir returns the directory where the presence daemon publishes its
// sockets. The first variable in socketDirVars with a non-empty value wins.
func SocketDir(lookup LookupEnv) string {
	for _, key := range socketDirVars {
		if dir, ok := lookup(key); ok && dir != "" {
			return dir
		}
	}
	return fallbackSocketDir
}

// SocketPath returns the socket path for one slot index inside dir.
func SocketPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d", socketPrefix, index))
}

// SocketPaths returns every candidate socket path in probe order.
func SocketPaths(lookup LookupEnv) []string {
	dir := SocketDir(lookup)
	paths := make([]string, 0, maxIPCSlots)
	for i := range maxIPCSlots {
		paths = append(paths, SocketPath(dir, i))
	}
	return paths
}
