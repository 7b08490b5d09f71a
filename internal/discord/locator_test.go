// Tests for socket discovery: directory precedence over an injected
// environment and the ordered candidate list.
package discord

import (
	"path/filepath"
	"strconv"
	"testing"
)

// envMap adapts a map to [LookupEnv].
func envMap(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestSocketDir(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "runtime dir wins",
			env:  map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000", "TMPDIR": "/var/tmp", "TMP": "/a", "TEMP": "/b"},
			want: "/run/user/1000",
		},
		{
			name: "TMPDIR second",
			env:  map[string]string{"TMPDIR": "/var/folders/xy/T/", "TMP": "/a", "TEMP": "/b"},
			want: "/var/folders/xy/T/",
		},
		{
			name: "TMP third",
			env:  map[string]string{"TMP": "/a", "TEMP": "/b"},
			want: "/a",
		},
		{
			name: "TEMP fourth",
			env:  map[string]string{"TEMP": "/b"},
			want: "/b",
		},
		{
			name: "fallback",
			env:  map[string]string{},
			want: "/tmp",
		},
		{
			name: "empty value is skipped",
			env:  map[string]string{"XDG_RUNTIME_DIR": "", "TMP": "/a"},
			want: "/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SocketDir(envMap(tt.env)); got != tt.want {
				t.Errorf("SocketDir = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSocketPaths(t *testing.T) {
	dir := filepath.Join("run", "user", "1000")
	paths := SocketPaths(envMap(map[string]string{"XDG_RUNTIME_DIR": dir}))

	if len(paths) != maxIPCSlots {
		t.Fatalf("got %d candidates, want %d", len(paths), maxIPCSlots)
	}
	for i, p := range paths {
		want := filepath.Join(dir, "discord-ipc-"+strconv.Itoa(i))
		if p != want {
			t.Errorf("candidate %d = %q, want %q", i, p, want)
		}
		if p != SocketPath(dir, i) {
			t.Errorf("candidate %d disagrees with SocketPath", i)
		}
	}
}
