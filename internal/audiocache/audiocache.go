// Package audiocache manages the transient on-disk store for synthesised
// interviewer audio. Files are written once, named by UUID, and reaped by a
// background sweeper after a TTL so abandoned sessions cannot fill the disk.
package audiocache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTTL           = 30 * time.Minute
	defaultSweepInterval = 10 * time.Minute
	audioExt             = ".mp3"
)

// Cache is a TTL-bounded directory of synthesised audio files.
// It is safe for concurrent use; all state lives on the filesystem.
type Cache struct {
	dir           string
	ttl           time.Duration
	sweepInterval time.Duration
	log           *slog.Logger
}

// Option is a functional option for configuring a Cache.
type Option func(*Cache)

// WithTTL overrides how long files are retained. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithSweepInterval overrides how often the sweeper runs. Non-positive values
// are ignored.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithLogger sets the logger used by the background sweeper.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates the cache directory (if needed) and returns a ready Cache.
// When dir is empty, a directory under os.TempDir() is used.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "interviewd-audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audiocache: create dir %q: %w", dir, err)
	}
	c := &Cache{
		dir:           dir,
		ttl:           defaultTTL,
		sweepInterval: defaultSweepInterval,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Put writes audio to a new UUID-named file and returns the file name
// (not the full path).
func (c *Cache) Put(audio []byte) (string, error) {
	name := uuid.NewString() + audioExt
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("audiocache: write %q: %w", name, err)
	}
	return name, nil
}

// Get reads a cached audio file by name. Returns os.ErrNotExist (wrapped) if
// the file has been reaped or never existed.
func (c *Cache) Get(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("audiocache: invalid file name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return nil, fmt.Errorf("audiocache: read %q: %w", name, err)
	}
	return data, nil
}

// Delete removes a cached audio file. Missing files are not an error: the
// sweeper may have gotten there first.
func (c *Cache) Delete(name string) error {
	if !validName(name) {
		return fmt.Errorf("audiocache: invalid file name %q", name)
	}
	err := os.Remove(filepath.Join(c.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("audiocache: delete %q: %w", name, err)
	}
	return nil
}

// Sweep removes all audio files older than the TTL and returns how many were
// deleted.
func (c *Cache) Sweep() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("audiocache: read dir: %w", err)
	}

	cutoff := time.Now().Add(-c.ttl)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), audioExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			c.log.Warn("audio cache sweep: cannot delete file", "file", entry.Name(), "err", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Run sweeps immediately and then periodically until ctx is cancelled.
// Intended to be launched as a background goroutine (e.g., via errgroup).
func (c *Cache) Run(ctx context.Context) error {
	sweep := func() {
		n, err := c.Sweep()
		if err != nil {
			c.log.Warn("audio cache sweep failed", "err", err)
			return
		}
		if n > 0 {
			c.log.Info("audio cache swept", "deleted", n)
		}
	}

	sweep()
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sweep()
		}
	}
}

// validName rejects names that could escape the cache directory.
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && name == filepath.Base(name)
}
