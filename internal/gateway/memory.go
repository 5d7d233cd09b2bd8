package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Op names a gateway operation, used by MemoryStore call recording and
// failure injection.
type Op string

const (
	OpSelect    Op = "select"
	OpInsert    Op = "insert"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpIncrement Op = "increment"
)

// Call is one recorded MemoryStore operation.
type Call struct {
	Op     Op
	Table  Table
	ID     string
	Fields map[string]any
}

type memTable struct {
	order []string
	rows  map[string]map[string]any
}

// MemoryStore is an in-process Gateway with the same referential behavior
// as the Postgres schema: deleting a team removes its players, matches and
// training sessions, and deleting a player removes it from every session's
// attended_player_ids.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[Table]*memTable

	hookMu sync.Mutex
	calls  []Call
	fail   map[failKey]error
	before func(op Op, table Table)
}

type failKey struct {
	op    Op
	table Table
	id    string
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		tables: make(map[Table]*memTable, len(Tables)),
		fail:   make(map[failKey]error),
	}
	for _, t := range Tables {
		s.tables[t] = &memTable{rows: make(map[string]map[string]any)}
	}
	return s
}

// FailOn makes every later op on table return err. A non-empty id limits the
// failure to that row. Pass a nil err to clear.
func (s *MemoryStore) FailOn(op Op, table Table, id string, err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	k := failKey{op: op, table: table, id: id}
	if err == nil {
		delete(s.fail, k)
		return
	}
	s.fail[k] = err
}

// BeforeEach installs fn to run before every operation, outside the store
// lock. Tests use it to hold a call in flight.
func (s *MemoryStore) BeforeEach(fn func(op Op, table Table)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.before = fn
}

// Calls returns every recorded operation in order.
func (s *MemoryStore) Calls() []Call {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountCalls returns how many recorded calls match op (and table when set).
func (s *MemoryStore) CountCalls(op Op, table Table) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op && (table == "" || c.Table == table) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) enter(op Op, table Table, id string, fields map[string]any) error {
	s.hookMu.Lock()
	s.calls = append(s.calls, Call{Op: op, Table: table, ID: id, Fields: fields})
	before := s.before
	err := s.fail[failKey{op: op, table: table}]
	if err == nil && id != "" {
		err = s.fail[failKey{op: op, table: table, id: id}]
	}
	s.hookMu.Unlock()

	if before != nil {
		before(op, table)
	}
	if !table.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return err
}

func (s *MemoryStore) SelectAll(ctx context.Context, table Table) ([]json.RawMessage, error) {
	if err := s.enter(OpSelect, table, "", nil); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tables[table]
	out := make([]json.RawMessage, 0, len(t.order))
	for _, id := range t.order {
		b, err := json.Marshal(t.rows[id])
		if err != nil {
			return nil, fmt.Errorf("encode %s row %s: %w", table, id, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, table Table, row any) (json.RawMessage, error) {
	if err := s.enter(OpInsert, table, "", nil); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", table, err)
	}
	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", table, err)
	}
	id, _ := rec["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	rec["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[table]
	if _, exists := t.rows[id]; exists {
		return nil, fmt.Errorf("insert %s: duplicate id %s", table, id)
	}
	t.rows[id] = rec
	t.order = append(t.order, id)
	return json.Marshal(rec)
}

func (s *MemoryStore) UpdateByID(ctx context.Context, table Table, id string, fields map[string]any) error {
	if err := s.enter(OpUpdate, table, id, fields); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Round-trip through JSON so stored values have the same shape as
	// inserted ones.
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s update: %w", table, err)
	}
	var norm map[string]any
	if err := json.Unmarshal(b, &norm); err != nil {
		return fmt.Errorf("decode %s update: %w", table, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[table].rows[id]
	if !ok {
		return nil
	}
	for k, v := range norm {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	return nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, table Table, id string) error {
	if err := s.enter(OpDelete, table, id, nil); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(table, id)

	switch table {
	case Teams:
		for _, child := range []Table{Players, Matches, TrainingSessions} {
			for _, cid := range s.idsWhereLocked(child, "team_id", id) {
				s.deleteLocked(child, cid)
			}
		}
		// Cascaded player deletes prune attendance too.
		s.pruneAttendeesLocked()
	case Players:
		s.pruneAttendeesLocked()
	}
	return nil
}

func (s *MemoryStore) IncrementByID(ctx context.Context, table Table, id, column string, delta int) error {
	if err := s.enter(OpIncrement, table, id, map[string]any{column: delta}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[table].rows[id]
	if !ok {
		return nil
	}
	cur, _ := rec[column].(float64)
	rec[column] = cur + float64(delta)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) deleteLocked(table Table, id string) {
	t := s.tables[table]
	if _, ok := t.rows[id]; !ok {
		return
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore) idsWhereLocked(table Table, column, value string) []string {
	var ids []string
	t := s.tables[table]
	for _, id := range t.order {
		if v, _ := t.rows[id][column].(string); v == value {
			ids = append(ids, id)
		}
	}
	return ids
}

// pruneAttendeesLocked drops attendee ids that no longer name a player.
func (s *MemoryStore) pruneAttendeesLocked() {
	players := s.tables[Players].rows
	for _, rec := range s.tables[TrainingSessions].rows {
		raw, ok := rec["attended_player_ids"].([]any)
		if !ok {
			continue
		}
		kept := make([]any, 0, len(raw))
		for _, v := range raw {
			if id, _ := v.(string); id != "" {
				if _, exists := players[id]; exists {
					kept = append(kept, id)
				}
			}
		}
		rec["attended_player_ids"] = kept
	}
}
