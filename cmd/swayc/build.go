package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"swayc/internal/pipeline"
)

var emitKinds = []string{"ir", "asm", "listing", "abi"}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [flags] [file]",
		Short: "Compile a program to bytecode",
		Long:  "Compile a program to bytecode. Without a file the [package].entry of swayc.toml is built.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBuild,
	}
	addCompileFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "bytecode output path")
	cmd.Flags().StringSlice("emit", nil, "also write sidecar files ("+strings.Join(emitKinds, ", ")+")")
	cmd.Flags().Bool("no-cache", false, "bypass the artifact cache")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	emit, err := cmd.Flags().GetStringSlice("emit")
	if err != nil {
		return err
	}
	for _, e := range emit {
		if !slices.Contains(emitKinds, e) {
			return fmt.Errorf("invalid --emit value %q (expected %s)", e, strings.Join(emitKinds, ", "))
		}
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	in, err := loadInput(args)
	if err != nil {
		return err
	}
	opts, err := compileOptions(cmd, in.manifest)
	if err != nil {
		return err
	}
	var cache *pipeline.ArtifactCache
	if !noCache && (in.manifest == nil || in.manifest.Config.Build.CacheEnabled()) {
		if cache, err = openCache(in.manifest); err != nil {
			s.log.Warn("artifact cache unavailable", "err", err)
			cache = nil
		}
	}

	art, err := s.compile(in, opts, cache)
	if err != nil {
		return err
	}

	outPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = defaultOutput(in)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, art.Bytecode, 0o600); err != nil {
		return err
	}
	base := strings.TrimSuffix(outPath, filepath.Ext(outPath))
	for _, e := range emit {
		if err := writeSidecar(base, e, art); err != nil {
			return err
		}
	}
	if !s.quiet {
		fmt.Fprintf(s.out, "built %s (%d bytes, %d selectors)\n", filepath.ToSlash(outPath), len(art.Bytecode), len(art.Selectors))
	}
	return nil
}

// defaultOutput places the bytecode in the project output directory, or
// next to the input outside a project.
func defaultOutput(in *input) string {
	if in.manifest != nil {
		name := in.manifest.Config.Package.Name
		return filepath.Join(in.manifest.OutputDir(), name+".bin")
	}
	return strings.TrimSuffix(in.path, filepath.Ext(in.path)) + ".bin"
}

// abiFile is the JSON written by --emit abi.
type abiFile struct {
	Name      string           `json:"name"`
	Kind      string           `json:"kind"`
	Selectors []abiSelector    `json:"selectors"`
	Storage   []abiStorageSlot `json:"storage_slots"`
}

type abiSelector struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

type abiStorageSlot struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func writeSidecar(base, kind string, art *pipeline.Artifact) error {
	var data []byte
	ext := "." + kind
	switch kind {
	case "ir":
		if art.IRText == "" {
			return fmt.Errorf("--emit ir: no IR in a legacy build")
		}
		data = []byte(art.IRText)
	case "asm":
		data = []byte(art.AsmText)
	case "listing":
		data, ext = []byte(art.Listing), ".lst"
	case "abi":
		f := abiFile{Name: art.Name, Kind: art.Kind.String(), Selectors: []abiSelector{}, Storage: []abiStorageSlot{}}
		for _, sel := range art.Selectors {
			f.Selectors = append(f.Selectors, abiSelector{Name: sel.Name, Selector: fmt.Sprintf("0x%08x", sel.Selector)})
		}
		for _, slot := range art.StorageSlots {
			f.Storage = append(f.Storage, abiStorageSlot{Key: fmt.Sprintf("0x%x", slot.Key), Value: fmt.Sprintf("0x%x", slot.Value)})
		}
		var err error
		if data, err = json.MarshalIndent(f, "", "  "); err != nil {
			return err
		}
		data = append(data, '\n')
		ext = ".abi.json"
	}
	return os.WriteFile(base+ext, data, 0o600)
}
