// conn_windows.go dials Discord's IPC named pipes (\\.\pipe\discord-ipc-N)
// using the go-winio library.

//go:build windows

package discord

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// ///////////////////////////////////////////////
// Transport
// ///////////////////////////////////////////////

// defaultCandidates returns the named pipes probed by [Connect]. Windows has
// no socket directory, so the environment is not consulted.
func defaultCandidates(LookupEnv) []string {
	pipes := make([]string, 0, maxIPCSlots)
	for i := range maxIPCSlots {
		pipes = append(pipes, fmt.Sprintf(`\\.\pipe\%s-%d`, socketPrefix, i))
	}
	return pipes
}

// dialSocket opens a client connection to the named pipe at path. A missing
// pipe reports ERROR_FILE_NOT_FOUND, which matches [fs.ErrNotExist].
func dialSocket(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}
