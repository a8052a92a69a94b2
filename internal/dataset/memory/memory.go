// Package memory keeps extract snapshots in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
)

type Store struct {
	mu       sync.RWMutex
	datasets map[string]core.Dataset
	versions map[string]int64
}

var (
	_ dataset.Reader = (*Store)(nil)
	_ dataset.Writer = (*Store)(nil)
)

func New(datasets ...core.Dataset) *Store {
	s := &Store{
		datasets: make(map[string]core.Dataset, len(datasets)),
		versions: make(map[string]int64, len(datasets)),
	}
	for _, ds := range datasets {
		s.datasets[ds.Name] = ds
		s.versions[ds.Name] = 1
	}
	return s
}

// Snapshot returns the stored dataset.
func (s *Store) Snapshot(_ context.Context, name string) (core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[name]
	if !ok {
		return core.Dataset{}, fmt.Errorf("%w: %s", dataset.ErrDatasetNotFound, name)
	}
	return ds, nil
}

// Datasets returns the stored names in ascending order.
func (s *Store) Datasets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReplaceDataset stores ds under its name and bumps the version.
func (s *Store) ReplaceDataset(_ context.Context, ds core.Dataset) (int64, error) {
	if ds.Name == "" {
		return 0, fmt.Errorf("dataset name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.Name] = ds
	s.versions[ds.Name]++
	return s.versions[ds.Name], nil
}

// Version returns the number of times name has been stored.
func (s *Store) Version(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[name]
}
