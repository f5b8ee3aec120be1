package ipc

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
			return
		}
		os.Setenv(key, original)
	})
}

// startFakeServer listens on a throwaway command socket and answers every
// request through handler. Returns the socket path.
func startFakeServer(t *testing.T, handler func(req request) response) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aerospace.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				var req request
				if err := json.NewDecoder(conn).Decode(&req); err != nil {
					return
				}
				_ = json.NewEncoder(conn).Encode(handler(req))
			}(conn)
		}
	}()
	return path
}
