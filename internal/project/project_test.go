package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadManifest_WalksUp(t *testing.T) {
	root := t.TempDir()
	manifest := "[package]\nname = \"wallet\"\n\n[build]\npasses = [\"sroa\", \"ret-demotion\"]\njobs = 2\ncache = false\n\n[output]\ndir = \"build\"\n"
	if err := os.WriteFile(filepath.Join(root, ManifestName), []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, ok, err := LoadManifest(nested)
	if err != nil || !ok {
		t.Fatalf("LoadManifest: ok=%v err=%v", ok, err)
	}
	if m.Config.Package.Name != "wallet" || m.Config.Build.Jobs != 2 {
		t.Fatalf("unexpected config %+v", m.Config)
	}
	if m.Config.Build.CacheEnabled() {
		t.Fatal("cache = false must disable the cache")
	}
	if got := m.OutputDir(); got != filepath.Join(root, "build") {
		t.Fatalf("OutputDir = %q", got)
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, ok, err := LoadManifest(t.TempDir())
	if err != nil || ok {
		t.Fatalf("expected no manifest, got ok=%v err=%v", ok, err)
	}
}

func TestDecodeConfig_Errors(t *testing.T) {
	cases := []struct {
		name, data, want string
	}{
		{"no name", "[build]\njobs = 1\n", "missing [package].name"},
		{"unknown pass", "[package]\nname = \"x\"\n[build]\npasses = [\"mem2reg\"]\n", "unknown pass"},
		{"unknown key", "[package]\nname = \"x\"\nflavour = 1\n", "unknown key"},
		{"negative jobs", "[package]\nname = \"x\"\n[build]\njobs = -1\n", "must not be negative"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodeConfig(c.data)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err = %v, want containing %q", err, c.want)
			}
		})
	}
}

func TestCombine_OrderMatters(t *testing.T) {
	a, b := DigestOf([]byte("a")), DigestOf([]byte("b"))
	if Combine(a, b) == Combine(b, a) {
		t.Fatal("digest must depend on order")
	}
}
