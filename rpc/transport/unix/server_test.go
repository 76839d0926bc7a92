//go:build unix

package unix

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dDoc/rpc/common"
)

func TestListenSocketPath(t *testing.T) {
	dir := t.TempDir()
	c := &serverConnector{}

	t.Run("Prefix", func(t *testing.T) {
		path := filepath.Join(dir, "prefix.sock")
		l, err := c.Listen(common.ServerConfig{Endpoint: "unix:" + path})
		if err != nil {
			t.Fatalf("Listen failed: %v", err)
		}
		defer l.Close()
		conn, err := net.Dial("unix", path)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		_ = conn.Close()
	})

	t.Run("StaleSocket", func(t *testing.T) {
		path := filepath.Join(dir, "stale.sock")
		stale, err := net.Listen("unix", path)
		if err != nil {
			t.Fatalf("Listen failed: %v", err)
		}
		// keep the file behind like a crashed server would
		stale.(*net.UnixListener).SetUnlinkOnClose(false)
		_ = stale.Close()

		l, err := c.Listen(common.ServerConfig{Endpoint: path})
		if err != nil {
			t.Fatalf("Listen over a stale socket failed: %v", err)
		}
		_ = l.Close()
	})

	t.Run("RegularFile", func(t *testing.T) {
		path := filepath.Join(dir, "data.json")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Listen(common.ServerConfig{Endpoint: path}); err == nil {
			t.Fatal("Expected an error for a regular file")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Regular file must be left alone: %v", err)
		}
	})
}
