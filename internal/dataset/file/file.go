// Package file reads extracts from a directory of CSV and XLSX files, one
// file per dataset named after it.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
)

const (
	extCSV  = ".csv"
	extXLSX = ".xlsx"
)

type Store struct {
	dir   string
	rules dataset.CoercionRules
}

var _ dataset.Reader = (*Store)(nil)

func New(dir string, rules dataset.CoercionRules) *Store {
	return &Store{dir: dir, rules: rules}
}

// Dir returns the extract directory.
func (s *Store) Dir() string { return s.dir }

// Datasets lists the extract names found in the directory.
func (s *Store) Datasets(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read extract directory: %w", err)
	}
	seen := make(map[string]struct{})
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != extCSV && ext != extXLSX {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Snapshot parses the extract file of name.
func (s *Store) Snapshot(_ context.Context, name string) (core.Dataset, error) {
	path, err := s.resolve(name)
	if err != nil {
		return core.Dataset{}, err
	}

	var header []string
	var records [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case extXLSX:
		header, records, err = readXLSX(path)
	default:
		header, records, err = readCSV(path)
	}
	if err != nil {
		return core.Dataset{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return dataset.Coerce(name, header, records, s.rules)
}

// ModTime returns the modification time of the extract file of name.
func (s *Store) ModTime(name string) (time.Time, error) {
	path, err := s.resolve(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// resolve finds the extract file of name. Extensions match in any case and a
// CSV wins over a workbook of the same name.
func (s *Store) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid dataset name %q", name)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("read extract directory: %w", err)
	}
	var found string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if strings.TrimSuffix(e.Name(), ext) != name {
			continue
		}
		switch strings.ToLower(ext) {
		case extCSV:
			return filepath.Join(s.dir, e.Name()), nil
		case extXLSX:
			found = filepath.Join(s.dir, e.Name())
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", dataset.ErrDatasetNotFound, name)
	}
	return found, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, records, nil
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}
