package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pmpm/internal/core"
	"pmpm/internal/dataset"

	_ "modernc.org/sqlite"
)

// SQLiteRepository mirrors warehouse extracts locally, one JSON payload per row.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// DatasetInfo describes the stored snapshot of an extract.
type DatasetInfo struct {
	Name     string    `json:"name"`
	Columns  []string  `json:"columns"`
	RowCount int64     `json:"row_count"`
	Version  int64     `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
}

var (
	_ dataset.Reader = (*SQLiteRepository)(nil)
	_ dataset.Writer = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceDataset swaps the stored rows of ds.Name in one transaction and
// returns the new version.
func (r *SQLiteRepository) ReplaceDataset(ctx context.Context, ds core.Dataset) (int64, error) {
	if ds.Name == "" {
		return 0, errors.New("dataset name is required")
	}
	columns, err := json.Marshal(ds.Columns)
	if err != nil {
		return 0, fmt.Errorf("marshal columns: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO datasets (name, columns, row_count, version, loaded_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			columns = excluded.columns,
			row_count = excluded.row_count,
			version = datasets.version + 1,
			loaded_at = excluded.loaded_at`,
		ds.Name, string(columns), len(ds.Rows), r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("upsert dataset: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset = ?`, ds.Name); err != nil {
		return 0, fmt.Errorf("clear rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_rows (dataset, row_index, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range ds.Rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("marshal row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, ds.Name, i, string(payload)); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	var version int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM datasets WHERE name = ?`, ds.Name).Scan(&version); err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Dataset stored in SQLite",
		"dataset", ds.Name,
		"rows", len(ds.Rows),
		"version", version)

	return version, nil
}

// Snapshot loads the stored rows of name in their original order.
func (r *SQLiteRepository) Snapshot(ctx context.Context, name string) (core.Dataset, error) {
	info, err := r.Info(ctx, name)
	if err != nil {
		return core.Dataset{}, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM dataset_rows WHERE dataset = ? ORDER BY row_index`, name)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := make([]core.Row, 0, info.RowCount)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return core.Dataset{}, fmt.Errorf("scan row: %w", err)
		}
		var row core.Row
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return core.Dataset{}, fmt.Errorf("decode row %d: %w", len(out), err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return core.Dataset{}, fmt.Errorf("iterate rows: %w", err)
	}

	return core.Dataset{Name: name, Columns: info.Columns, Rows: out}, nil
}

// Datasets lists the stored extract names.
func (r *SQLiteRepository) Datasets(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Info returns the metadata of the stored snapshot of name.
func (r *SQLiteRepository) Info(ctx context.Context, name string) (DatasetInfo, error) {
	var (
		info     DatasetInfo
		columns  string
		loadedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT name, columns, row_count, version, loaded_at FROM datasets WHERE name = ?`, name).
		Scan(&info.Name, &columns, &info.RowCount, &info.Version, &loadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetInfo{}, fmt.Errorf("%w: %s", dataset.ErrDatasetNotFound, name)
	}
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("query dataset: %w", err)
	}
	if err := json.Unmarshal([]byte(columns), &info.Columns); err != nil {
		return DatasetInfo{}, fmt.Errorf("decode columns: %w", err)
	}
	if info.LoadedAt, err = time.Parse(time.RFC3339Nano, loadedAt); err != nil {
		return DatasetInfo{}, fmt.Errorf("parse loaded_at: %w", err)
	}
	return info, nil
}
