package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// KnownPasses lists the optimisation passes accepted in [build].passes.
var KnownPasses = []string{"simplify-cfg", "dce", "sroa", "reg-pressure", "ret-demotion"}

// Manifest is a loaded swayc.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the sections of swayc.toml.
type Config struct {
	Package PackageConfig `toml:"package"`
	Build   BuildConfig   `toml:"build"`
	Output  OutputConfig  `toml:"output"`
}

type PackageConfig struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

type BuildConfig struct {
	// Passes replaces the default pipeline when set.
	Passes        []string `toml:"passes"`
	LegacyCodegen bool     `toml:"legacy_codegen"`
	Jobs          int      `toml:"jobs"`
	Cache         *bool    `toml:"cache"`
	VerifyStrict  bool     `toml:"verify_strict"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

// CacheEnabled reports whether the artifact cache is on; it defaults to on.
func (c BuildConfig) CacheEnabled() bool {
	return c.Cache == nil || *c.Cache
}

// LoadManifest finds and decodes swayc.toml starting at startDir.
// ok is false when no manifest exists.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// LoadConfig decodes and validates one manifest file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := cfg.validate(meta); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes a manifest held in memory.
func DecodeConfig(data string) (Config, error) {
	var cfg Config
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.validate(meta); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) validate(meta toml.MetaData) error {
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return fmt.Errorf("missing [package].name")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	for _, p := range cfg.Build.Passes {
		if !slices.Contains(KnownPasses, p) {
			return fmt.Errorf("[build].passes: unknown pass %q (known: %s)", p, strings.Join(KnownPasses, ", "))
		}
	}
	if cfg.Build.Jobs < 0 {
		return fmt.Errorf("[build].jobs must not be negative")
	}
	return nil
}

// OutputDir resolves [output].dir against the project root.
func (m *Manifest) OutputDir() string {
	dir := m.Config.Output.Dir
	if dir == "" {
		dir = "out"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(m.Root, filepath.FromSlash(dir))
}
