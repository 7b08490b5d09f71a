// conn_unix.go dials Discord's IPC Unix domain sockets on Linux, macOS and
// the BSDs.

//go:build !windows

package discord

import (
	"net"
)

// ///////////////////////////////////////////////
// Transport
// ///////////////////////////////////////////////

// defaultCandidates returns the socket paths probed by [Connect].
func defaultCandidates(lookup LookupEnv) []string {
	return SocketPaths(lookup)
}

// dialSocket opens a client connection to the Unix socket at path. A missing
// socket file surfaces as an error matching [fs.ErrNotExist].
func dialSocket(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
