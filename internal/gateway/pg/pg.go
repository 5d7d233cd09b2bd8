// Package pg implements gateway.Gateway directly on Postgres. Rows are
// passed through as JSON: Postgres builds the row objects (row_to_json) and
// decodes inserts and updates (json_populate_record), so column mapping
// lives in one place, the schema.
package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
)

// Store is a pgxpool-backed gateway.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SelectAll(ctx context.Context, table gateway.Table) ([]json.RawMessage, error) {
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}
	var data []byte
	q := selectAllSQL(tbl)
	if err := s.pool.QueryRow(ctx, q).Scan(&data); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, table gateway.Table, row any) (json.RawMessage, error) {
	tbl, err := ident(table)
	if err != nil {
		return nil, err
	}
	fields, payload, err := toFields(row)
	if err != nil {
		return nil, err
	}
	var out []byte
	if err := s.pool.QueryRow(ctx, insertSQL(tbl, columns(fields)), payload).Scan(&out); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) UpdateByID(ctx context.Context, table gateway.Table, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	tbl, err := ident(table)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s update: %w", table, err)
	}
	if _, err := s.pool.Exec(ctx, updateSQL(tbl, columns(fields)), id, payload); err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, table gateway.Table, id string) error {
	tbl, err := ident(table)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM "+tbl+" WHERE id::text = $1", id); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}

// IncrementByID runs the increment_column function prepared by package db.
func (s *Store) IncrementByID(ctx context.Context, table gateway.Table, id, column string, delta int) error {
	if !table.Valid() {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}
	if _, err := s.pool.Exec(ctx, "increment_column", string(table), id, column, delta); err != nil {
		return fmt.Errorf("increment %s.%s %s: %w", table, column, id, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --------------------------------------------------------------------------
// SQL builders
// --------------------------------------------------------------------------

func ident(table gateway.Table) (string, error) {
	if !table.Valid() {
		return "", fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}
	return pgx.Identifier{string(table)}.Sanitize(), nil
}

func selectAllSQL(tbl string) string {
	return "SELECT coalesce(json_agg(row_to_json(t)), '[]'::json) FROM " + tbl + " t"
}

func insertSQL(tbl string, cols []string) string {
	list := strings.Join(cols, ", ")
	return fmt.Sprintf(
		"INSERT INTO %s AS t (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json) RETURNING row_to_json(t.*)",
		tbl, list, list, tbl)
}

func updateSQL(tbl string, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = r." + c
	}
	return fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM json_populate_record(NULL::%s, $2::json) AS r WHERE t.id::text = $1",
		tbl, strings.Join(sets, ", "), tbl)
}

// columns returns the sanitized column names of fields in stable order.
func columns(fields map[string]any) []string {
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if k == "id" {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	for i, c := range cols {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	return cols
}

func toFields(row any) (map[string]any, []byte, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, nil, fmt.Errorf("encode row: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, nil, fmt.Errorf("row is not an object: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("row has no columns")
	}
	return fields, payload, nil
}
