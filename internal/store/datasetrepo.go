package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a dataset has never been stored.
var ErrNotFound = errors.New("dataset not found")

// Store persists parsed datasets.
type Store struct {
	db *DB
}

// New creates a Store on top of an open DB.
func New(db *DB) *Store {
	return &Store{db: db}
}

// DatasetInfo describes a stored dataset.
type DatasetInfo struct {
	Name      string
	Columns   []string
	RowCount  int
	Hash      string
	UpdatedAt time.Time
}

// Page is one page of dataset rows.
type Page struct {
	Columns   []string
	Rows      []map[string]string
	Page      int
	PageSize  int
	TotalRows int
}

// ReplaceDataset transactionally swaps the stored content of a dataset:
// all previous rows are removed, the new rows are inserted, and the dataset
// record is upserted. Either everything lands or nothing does.
func (s *Store) ReplaceDataset(ctx context.Context, name string, columns []string, rows [][]string, hash string) error {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset = ?`, name); err != nil {
		return fmt.Errorf("delete old rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (name, columns, row_count, hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			columns = excluded.columns,
			row_count = excluded.row_count,
			hash = excluded.hash,
			updated_at = excluded.updated_at
	`, name, string(columnsJSON), len(rows), hash, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_rows (dataset, row_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		record := make(map[string]string, len(columns))
		for j, col := range columns {
			if j < len(row) {
				record[col] = row[j]
			}
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, name, i, string(data)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Info returns the dataset record, or ErrNotFound.
func (s *Store) Info(ctx context.Context, name string) (DatasetInfo, error) {
	var (
		info        DatasetInfo
		columnsJSON string
		updatedAt   string
	)
	err := s.db.Reader.QueryRowContext(ctx, `
		SELECT name, columns, row_count, hash, updated_at FROM datasets WHERE name = ?
	`, name).Scan(&info.Name, &columnsJSON, &info.RowCount, &info.Hash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetInfo{}, ErrNotFound
	}
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("query dataset: %w", err)
	}

	if err := json.Unmarshal([]byte(columnsJSON), &info.Columns); err != nil {
		return DatasetInfo{}, fmt.Errorf("unmarshal columns: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		info.UpdatedAt = ts
	}
	return info, nil
}

// Hash returns the stored payload hash for a dataset, or "" when the
// dataset is unknown.
func (s *Store) Hash(ctx context.Context, name string) (string, error) {
	info, err := s.Info(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Hash, nil
}

// GetPage returns one page of rows, 1-based. Page and pageSize below 1 are
// normalized to the API defaults (page 1, 10 rows).
func (s *Store) GetPage(ctx context.Context, name string, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	info, err := s.Info(ctx, name)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	rows, err := s.queryRows(ctx, name, pageSize, offset)
	if err != nil {
		return nil, err
	}

	return &Page{
		Columns:   info.Columns,
		Rows:      rows,
		Page:      page,
		PageSize:  pageSize,
		TotalRows: info.RowCount,
	}, nil
}

// Sample returns the first n rows of a dataset.
func (s *Store) Sample(ctx context.Context, name string, n int) ([]map[string]string, error) {
	if n < 1 {
		n = 10
	}
	if _, err := s.Info(ctx, name); err != nil {
		return nil, err
	}
	return s.queryRows(ctx, name, n, 0)
}

// List returns every stored dataset record.
func (s *Store) List(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan dataset name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}

	infos := make([]DatasetInfo, 0, len(names))
	for _, name := range names {
		info, err := s.Info(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Store) queryRows(ctx context.Context, name string, limit, offset int) ([]map[string]string, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `
		SELECT data FROM dataset_rows
		WHERE dataset = ?
		ORDER BY row_index
		LIMIT ? OFFSET ?
	`, name, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	result := make([]map[string]string, 0, limit)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var record map[string]string
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
