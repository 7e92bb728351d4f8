package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spacenew/triggerflow/core/infra/logging"
)

const defaultReloadInterval = 30 * time.Second

// Loader keeps a Registry in sync with the *.json workflow documents in a
// directory. Changed files re-register their workflow, vanished files remove
// it, and a file that fails to parse keeps whatever was registered before.
// A Loader drives a single registry from a single goroutine.
type Loader struct {
	dir      string
	registry *Registry
	interval time.Duration

	hashes map[string]string // file path -> content hash
	ids    map[string]string // file path -> workflow id
}

// NewLoader builds a loader for a workflow directory.
func NewLoader(dir string, reg *Registry) *Loader {
	return &Loader{
		dir:      dir,
		registry: reg,
		interval: defaultReloadInterval,
		hashes:   make(map[string]string),
		ids:      make(map[string]string),
	}
}

// WithInterval sets how often Run sweeps the directory.
func (l *Loader) WithInterval(d time.Duration) *Loader {
	if d > 0 {
		l.interval = d
	}
	return l
}

// LoadOnce sweeps the directory a single time and returns how many
// definitions were registered or replaced. Per-file problems are logged and
// skipped; only an unreadable directory is an error.
func (l *Loader) LoadOnce() (int, error) {
	return l.sweep()
}

// Run sweeps the directory on the configured interval until the context is
// canceled.
func (l *Loader) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.sweep(); err != nil {
				logging.Error("loader", "workflow sweep failed", "dir", l.dir, "error", err)
			}
		}
	}
}

func (l *Loader) sweep() (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(entries))
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		seen[path] = true

		data, err := os.ReadFile(path)
		if err != nil {
			logging.Error("loader", "read workflow file failed", "path", path, "error", err)
			continue
		}
		hash := contentHash(data)
		if l.hashes[path] == hash {
			continue
		}

		def, err := Parse(data)
		if err != nil {
			logging.Error("loader", "workflow file rejected", "path", path, "error", err)
			continue
		}
		if err := l.registry.Register(def); err != nil {
			logging.Error("loader", "workflow registration failed", "path", path, "workflow_id", def.ID, "error", err)
			continue
		}

		// A file that changed its workflow id removes the old one, unless
		// another file still carries it.
		if prev, ok := l.ids[path]; ok && prev != def.ID {
			l.removeIfOrphaned(path, prev)
		}
		l.hashes[path] = hash
		l.ids[path] = def.ID
		loaded++
		logging.Info("loader", "workflow loaded", "path", path, "workflow_id", def.ID, "version", def.Version)
	}

	for path, id := range l.ids {
		if seen[path] {
			continue
		}
		l.removeIfOrphaned(path, id)
		delete(l.ids, path)
		delete(l.hashes, path)
	}
	return loaded, nil
}

func (l *Loader) removeIfOrphaned(path, id string) {
	for other, otherID := range l.ids {
		if other != path && otherID == id {
			return
		}
	}
	l.registry.Remove(id)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
