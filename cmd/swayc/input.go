package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"swayc/internal/ast"
	"swayc/internal/pipeline"
	"swayc/internal/project"
	"swayc/internal/tastyaml"
)

const noManifestMessage = "no swayc.toml found\nplease name the program explicitly, e.g.:\n  swayc build path/to/program.yaml"

// input is the program a command works on and the manifest around it.
type input struct {
	path     string
	manifest *project.Manifest
	prog     *ast.Program
	raw      []byte
}

// loadInput decodes the program named in args, or the [package].entry of
// the manifest found from the working directory.
func loadInput(args []string) (*input, error) {
	manifest, found, err := project.LoadManifest(".")
	if err != nil {
		return nil, err
	}
	in := &input{}
	if found {
		in.manifest = manifest
	}
	switch {
	case len(args) > 0 && args[0] != "":
		in.path = args[0]
	case found && manifest.Config.Package.Entry != "":
		in.path = filepath.Join(manifest.Root, filepath.FromSlash(manifest.Config.Package.Entry))
	case found:
		return nil, fmt.Errorf("%s: [package].entry is not set", manifest.Path)
	default:
		return nil, errors.New(noManifestMessage)
	}
	in.prog, in.raw, err = tastyaml.Load(in.path)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// cacheInput is the cache key material: the path names spans in the
// artifact, so it is part of the input.
func (in *input) cacheInput() []byte {
	return append([]byte(in.path+"\n"), in.raw...)
}

func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("passes", nil, "optimisation passes to run, in order ("+strings.Join(project.KnownPasses, ", ")+")")
	cmd.Flags().Bool("legacy", false, "generate code straight from the typed AST")
	cmd.Flags().Int("jobs", 0, "concurrent function code generation (0: GOMAXPROCS)")
	cmd.Flags().Bool("verify-strict", false, "type-check every IR operand")
}

// compileOptions merges the [build] section of the manifest with the
// command-line flags; flags win when set.
func compileOptions(cmd *cobra.Command, manifest *project.Manifest) (pipeline.Options, error) {
	var opts pipeline.Options
	if manifest != nil {
		b := manifest.Config.Build
		opts = pipeline.Options{
			Passes:       b.Passes,
			Legacy:       b.LegacyCodegen,
			Jobs:         b.Jobs,
			VerifyStrict: b.VerifyStrict,
		}
	}
	flags := cmd.Flags()
	var err error
	if flags.Changed("passes") {
		if opts.Passes, err = flags.GetStringSlice("passes"); err != nil {
			return opts, err
		}
		for _, p := range opts.Passes {
			if !slices.Contains(project.KnownPasses, p) {
				return opts, fmt.Errorf("unknown pass %q (known: %s)", p, strings.Join(project.KnownPasses, ", "))
			}
		}
	}
	if flags.Changed("legacy") {
		if opts.Legacy, err = flags.GetBool("legacy"); err != nil {
			return opts, err
		}
	}
	if flags.Changed("jobs") {
		if opts.Jobs, err = flags.GetInt("jobs"); err != nil {
			return opts, err
		}
		if opts.Jobs < 0 {
			return opts, errors.New("--jobs must not be negative")
		}
	}
	if flags.Changed("verify-strict") {
		if opts.VerifyStrict, err = flags.GetBool("verify-strict"); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// compile runs the pipeline and prints its diagnostics. A failed build is
// an error.
func (s *session) compile(in *input, opts pipeline.Options, cache *pipeline.ArtifactCache) (*pipeline.Artifact, error) {
	key := pipeline.CacheKey(in.cacheInput(), opts)
	if cache != nil {
		art, ok, err := cache.Get(key)
		switch {
		case err != nil:
			s.log.Warn("artifact cache read failed", "err", err)
		case ok:
			s.log.Info("artifact cache hit", "key", key.String())
			return art, nil
		}
	}

	opts.Timer = s.timer
	res := pipeline.Compile(s.ctx, in.prog, opts)
	if err := s.report(in.prog.Files, res.Warnings, res.Errors); err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return nil, fmt.Errorf("%s: build failed with %d error(s)", in.path, len(res.Errors))
	}
	if cache != nil {
		if err := cache.Put(key, res.Value); err != nil {
			s.log.Warn("artifact cache write failed", "err", err)
		}
	}
	return res.Value, nil
}

// openCache opens the artifact cache of the project, or the user cache
// outside a project.
func openCache(manifest *project.Manifest) (*pipeline.ArtifactCache, error) {
	dir := ""
	if manifest != nil {
		dir = filepath.Join(manifest.OutputDir(), ".cache")
	}
	return pipeline.OpenArtifactCache(dir)
}
