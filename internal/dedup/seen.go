// Package dedup tracks identifiers already exported by earlier runs so a
// new run can skip them. The set is advisory: a load failure degrades to
// an empty set rather than blocking the run.
package dedup

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Identifier columns recognized in result files.
var idColumns = []string{"channel_id", "video_id"}

// SeenSet is a concurrency-safe set of previously exported identifiers.
type SeenSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New returns an empty SeenSet.
func New() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Contains reports whether id was seen before.
func (s *SeenSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add marks id as seen.
func (s *SeenSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Len returns the number of distinct identifiers.
func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Load unions the identifier columns of every CSV under dir. Files that
// cannot be opened or parsed are logged and skipped; a missing dir
// yields an empty set.
func Load(dir string) *SeenSet {
	set := New()

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil || len(paths) == 0 {
		return set
	}

	var g errgroup.Group
	g.SetLimit(8)
	for _, path := range paths {
		g.Go(func() error {
			n, err := loadFile(path, set)
			if err != nil {
				zap.L().Warn("skipping unreadable results file",
					zap.String("path", path), zap.Error(err))
				return nil
			}
			zap.L().Debug("loaded previous results",
				zap.String("path", path), zap.Int("ids", n))
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("dedup set loaded", zap.Int("files", len(paths)), zap.Int("ids", set.Len()))
	return set
}

// loadFile reads one CSV and adds every value in its identifier column.
// Files without a recognized column contribute nothing.
func loadFile(path string, set *SeenSet) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, err
	}

	col := -1
	for i, name := range header {
		for _, want := range idColumns {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				col = i
				break
			}
		}
		if col >= 0 {
			break
		}
	}
	if col < 0 {
		return 0, nil
	}

	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if col >= len(rec) {
			continue
		}
		if id := strings.TrimSpace(rec[col]); id != "" {
			set.Add(id)
			n++
		}
	}
	return n, nil
}
