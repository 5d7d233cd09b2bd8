// Package sqlite implements gateway.Gateway on a local SQLite file for
// single-machine deployments and offline development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
)

//go:embed schema.sql
var schema string

type colKind int

const (
	colText colKind = iota
	colInt
	colJSON
)

// columnsByTable lists every non-id column and how it is stored.
var columnsByTable = map[gateway.Table]map[string]colKind{
	gateway.Teams: {
		"name":    colText,
		"user_id": colText,
	},
	gateway.Players: {
		"name":               colText,
		"team_id":            colText,
		"matches_played":     colInt,
		"trainings_attended": colInt,
		"goals":              colInt,
		"assists":            colInt,
	},
	gateway.Matches: {
		"team_id":  colText,
		"opponent": colText,
		"date":     colText,
		"time":     colText,
		"location": colText,
	},
	gateway.TrainingSessions: {
		"team_id":             colText,
		"date":                colText,
		"attended_player_ids": colJSON,
	},
}

// Store is a SQLite-backed gateway.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Foreign keys are enabled so team deletes cascade.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps the pragmas and transactions predictable.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) SelectAll(ctx context.Context, table gateway.Table) ([]json.RawMessage, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	names := sortedNames(cols)
	q := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY rowid", strings.Join(names, ", "), table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var id string
		vals := make([]any, len(names))
		dest := make([]any, len(names)+1)
		dest[0] = &id
		for i, n := range names {
			switch cols[n] {
			case colInt:
				vals[i] = new(int64)
			default:
				vals[i] = new(string)
			}
			dest[i+1] = vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		rec := map[string]any{"id": id}
		for i, n := range names {
			switch cols[n] {
			case colInt:
				rec[n] = *vals[i].(*int64)
			case colJSON:
				rec[n] = json.RawMessage(*vals[i].(*string))
			default:
				rec[n] = *vals[i].(*string)
			}
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode %s row: %w", table, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table gateway.Table, row any) (json.RawMessage, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	fields, err := toFields(row)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	names := sortedNames(cols)
	args := make([]any, 0, len(names)+1)
	args = append(args, id)
	rec := map[string]any{"id": id}
	for _, n := range names {
		v, err := encode(cols[n], fields[n])
		if err != nil {
			return nil, fmt.Errorf("insert %s: column %s: %w", table, n, err)
		}
		args = append(args, v)
		rec[n] = decodedValue(cols[n], v)
	}

	q := fmt.Sprintf("INSERT INTO %s (id, %s) VALUES (?%s)",
		table, strings.Join(names, ", "), strings.Repeat(", ?", len(names)))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return json.Marshal(rec)
}

func (s *Store) UpdateByID(ctx context.Context, table gateway.Table, id string, fields map[string]any) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(fields))
	for n := range fields {
		if n == "id" {
			continue
		}
		if _, ok := cols[n]; !ok {
			return fmt.Errorf("update %s: unknown column %s", table, n)
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, n := range names {
		v, err := encode(cols[n], fields[n])
		if err != nil {
			return fmt.Errorf("update %s: column %s: %w", table, n, err)
		}
		sets[i] = n + " = ?"
		args = append(args, v)
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, table gateway.Table, id string) error {
	if _, err := tableColumns(table); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}

func (s *Store) IncrementByID(ctx context.Context, table gateway.Table, id, column string, delta int) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	if cols[column] != colInt {
		return fmt.Errorf("increment %s: %s is not a counter column", table, column)
	}
	q := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE id = ?", table, column, column)
	if _, err := s.db.ExecContext(ctx, q, delta, id); err != nil {
		return fmt.Errorf("increment %s.%s %s: %w", table, column, id, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func tableColumns(table gateway.Table) (map[string]colKind, error) {
	cols, ok := columnsByTable[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}
	return cols, nil
}

func sortedNames(cols map[string]colKind) []string {
	names := make([]string, 0, len(cols))
	for n := range cols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func toFields(row any) (map[string]any, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("row is not an object: %w", err)
	}
	return fields, nil
}

// encode converts a decoded JSON value (or a Go value passed to UpdateByID)
// to its column representation. Missing values take the column default.
func encode(kind colKind, v any) (any, error) {
	switch kind {
	case colInt:
		switch n := v.(type) {
		case nil:
			return int64(0), nil
		case float64:
			return int64(n), nil
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
		return nil, fmt.Errorf("want integer, got %T", v)
	case colJSON:
		if v == nil {
			return "[]", nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		switch s := v.(type) {
		case nil:
			return "", nil
		case string:
			return s, nil
		}
		return nil, fmt.Errorf("want string, got %T", v)
	}
}

func decodedValue(kind colKind, stored any) any {
	if kind == colJSON {
		return json.RawMessage(stored.(string))
	}
	return stored
}
