package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSession_WritesProfiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:          filepath.Join(dir, "cpu.pprof"),
		Mem:          filepath.Join(dir, "mem.pprof"),
		RuntimeTrace: filepath.Join(dir, "rt.trace"),
	}
	s, err := Start(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	for _, p := range []string{opts.CPU, opts.Mem, opts.RuntimeTrace} {
		if _, err := os.Stat(p); err != nil {
			t.Error(err)
		}
	}
}

func TestStart_BadPath(t *testing.T) {
	if _, err := Start(Options{CPU: filepath.Join(t.TempDir(), "missing", "cpu.pprof")}); err == nil {
		t.Fatal("expected an error for an unwritable path")
	}
}

func TestSession_Disabled(t *testing.T) {
	s, err := Start(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}
