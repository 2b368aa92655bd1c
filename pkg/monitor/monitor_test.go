package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type collector struct {
	sync.Mutex
	sb strings.Builder
}

func (c *collector) cb(path string) error {
	c.Lock()
	defer c.Unlock()
	fmt.Fprintf(&c.sb, "archive %s\n", filepath.Base(path))
	return nil
}

func (c *collector) String() string {
	c.Lock()
	defer c.Unlock()
	return c.sb.String()
}

func writeArchive(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(filepath.Clean(dir), name), []byte("archive content"), 0o600); err != nil {
		t.Fatalf("could not create test archive %s, error: %s", name, err)
	}
}

func TestMonitor(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "dropped archive is submitted",
			test: func(t *testing.T) {
				tmpDir := t.TempDir()
				c := &collector{}
				monitor, err := NewMonitor(c.cb, false, 0, 0)
				if err != nil {
					t.Errorf("could not create new monitor, error: %s", err)
					return
				}
				defer monitor.Close()
				monitor.Start()
				if err = monitor.Add(tmpDir); err != nil {
					t.Fatalf("test monitor, could not add path : %s", err)
				}
				writeArchive(t, tmpDir, "legacy.zip")
				time.Sleep(time.Millisecond * 300)
				monitor.Close()
				got := c.String()
				want := "archive legacy.zip\n"
				if got != want {
					t.Errorf("invalid callback output, got: %s, want: %s", got, want)
				}
			},
		},
		{
			name: "non-archive files are ignored",
			test: func(t *testing.T) {
				tmpDir := t.TempDir()
				c := &collector{}
				monitor, err := NewMonitor(c.cb, false, 0, 0)
				if err != nil {
					t.Errorf("could not create new monitor, error: %s", err)
					return
				}
				defer monitor.Close()
				monitor.Start()
				if err = monitor.Add(tmpDir); err != nil {
					t.Fatalf("test monitor, could not add path : %s", err)
				}
				writeArchive(t, tmpDir, "notes.txt")
				writeArchive(t, tmpDir, "legacy.tar.gz")
				time.Sleep(time.Millisecond * 300)
				monitor.Close()
				got := c.String()
				want := "archive legacy.tar.gz\n"
				if got != want {
					t.Errorf("invalid callback output, got: %s, want: %s", got, want)
				}
			},
		},
		{
			name: "moved archive is submitted",
			test: func(t *testing.T) {
				tmpDir := t.TempDir()
				c := &collector{}
				monitor, err := NewMonitor(c.cb, false, 0, 0)
				if err != nil {
					t.Errorf("could not create new monitor, error: %s", err)
					return
				}
				defer monitor.Close()
				monitor.Start()
				if err = monitor.Add(tmpDir); err != nil {
					t.Fatalf("test monitor, could not add path : %s", err)
				}
				f, err := os.CreateTemp(os.TempDir(), "staged_*.zip")
				if err != nil {
					t.Errorf("could not create staged archive, error: %s", err)
					return
				}
				if _, err = f.WriteString("archive content"); err != nil {
					t.Fatalf("test monitor, could not write string : %s", err)
				}
				if err = f.Close(); err != nil {
					t.Fatalf("test monitor, could not close file : %s", err)
				}
				if err = os.Rename(f.Name(), filepath.Join(filepath.Clean(tmpDir), "legacy.zip")); err != nil {
					t.Fatalf("test monitor, could not rename file : %s", err)
				}
				time.Sleep(time.Millisecond * 300)
				monitor.Close()
				got := c.String()
				want := "archive legacy.zip\n"
				if got != want {
					t.Errorf("invalid callback output, got: %s, want: %s", got, want)
				}
			},
		},
		{
			name: "removed folder is no longer watched",
			test: func(t *testing.T) {
				tmpDir := t.TempDir()
				c := &collector{}
				monitor, err := NewMonitor(c.cb, false, 0, 0)
				if err != nil {
					t.Errorf("could not create new monitor, error: %s", err)
					return
				}
				defer monitor.Close()
				monitor.Start()
				if err = monitor.Add(tmpDir); err != nil {
					t.Fatalf("test monitor, could not add path : %s", err)
				}
				writeArchive(t, tmpDir, "first.zip")
				time.Sleep(time.Millisecond * 300)
				if err = monitor.Remove(tmpDir); err != nil {
					t.Fatalf("test monitor, could not remove tmp dir : %s", err)
				}
				writeArchive(t, tmpDir, "second.zip")
				time.Sleep(time.Millisecond * 300)
				monitor.Close()
				got := c.String()
				want := "archive first.zip\n"
				if got != want {
					t.Errorf("invalid callback output, got: %s, want: %s", got, want)
				}
			},
		},
		{
			name: "pre-scan picks up existing archives",
			test: func(t *testing.T) {
				tmpDir := t.TempDir()
				writeArchive(t, tmpDir, "legacy.tgz")
				c := &collector{}
				monitor, err := NewMonitor(c.cb, true, 0, 0)
				if err != nil {
					t.Errorf("could not create new monitor, error: %s", err)
					return
				}
				defer monitor.Close()
				monitor.Start()
				if err = monitor.Add(tmpDir); err != nil {
					t.Fatalf("test monitor, could not add path : %s", err)
				}
				time.Sleep(time.Millisecond * 300)
				monitor.Close()
				got := c.String()
				want := "archive legacy.tgz\n"
				if got != want {
					t.Errorf("invalid callback output, got: %s, want: %s", got, want)
				}
			},
		},
		{
			name: "period rescan picks up archives, once",
			test: func(t *testing.T) {
				tmpDir := t.TempDir()
				writeArchive(t, tmpDir, "legacy.tar")
				c := &collector{}
				monitor, err := NewMonitor(c.cb, false, time.Millisecond*60, 0)
				if err != nil {
					t.Errorf("could not create new monitor, error: %s", err)
					return
				}
				defer monitor.Close()
				monitor.Start()
				if err = monitor.Add(tmpDir); err != nil {
					t.Fatalf("test monitor, could not add path : %s", err)
				}
				time.Sleep(time.Millisecond * 500)
				monitor.Close()
				got := c.String()
				want := "archive legacy.tar\n"
				if got != want {
					t.Errorf("invalid callback output, got: %s, want: %s", got, want)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}
