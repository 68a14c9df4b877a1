package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"swayc/internal/project"
	"swayc/internal/version"
)

// Current schema version; increment when cachedArtifact changes.
const artifactSchemaVersion uint16 = 1

// ArtifactCache stores build artifacts on disk, keyed by the digest of the
// input and the options that shape the output. Safe for concurrent use.
type ArtifactCache struct {
	mu  sync.RWMutex
	dir string
}

type cachedArtifact struct {
	Schema   uint16    `msgpack:"schema"`
	Compiler string    `msgpack:"compiler"`
	Artifact *Artifact `msgpack:"artifact"`
}

// OpenArtifactCache opens a cache rooted at dir. An empty dir selects
// $XDG_CACHE_HOME/swayc, falling back to ~/.cache/swayc.
func OpenArtifactCache(dir string) (*ArtifactCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "swayc")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ArtifactCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *ArtifactCache) Dir() string { return c.dir }

// CacheKey derives the cache key of input compiled with opts. Jobs and the
// timer do not change the output and are not part of the key.
func CacheKey(input []byte, opts Options) project.Digest {
	passes := opts.Passes
	if passes == nil {
		passes = []string{"<default>"}
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(slices.Clone(passes), ","))
	sb.WriteString(";legacy=" + strconv.FormatBool(opts.Legacy))
	sb.WriteString(";strict=" + strconv.FormatBool(opts.VerifyStrict))
	return project.Combine(project.DigestOf(input),
		project.DigestOf([]byte(sb.String())),
		project.DigestOf([]byte(version.Version)))
}

func (c *ArtifactCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, "artifacts", key.String()+".mp")
}

// Put writes art under key, replacing any previous entry atomically.
func (c *ArtifactCache) Put(key project.Digest, art *Artifact) (err error) {
	if c == nil || art == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	payload := cachedArtifact{Schema: artifactSchemaVersion, Compiler: version.Version, Artifact: art}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the artifact stored under key. Entries written by another
// schema or compiler version are misses.
func (c *ArtifactCache) Get(key project.Digest) (*Artifact, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachedArtifact
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != artifactSchemaVersion || payload.Compiler != version.Version || payload.Artifact == nil {
		return nil, false, nil
	}
	return payload.Artifact, true, nil
}

// DropAll removes every cached artifact.
func (c *ArtifactCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "artifacts"))
}
