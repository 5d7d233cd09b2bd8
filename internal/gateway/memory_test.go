package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func insert(t *testing.T, s *MemoryStore, table Table, row map[string]any) string {
	t.Helper()
	raw, err := s.Insert(context.Background(), table, row)
	if err != nil {
		t.Fatalf("insert %s: %v", table, err)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		t.Fatalf("insert %s returned no id: %s", table, raw)
	}
	return out.ID
}

func selectRows(t *testing.T, s *MemoryStore, table Table) []map[string]any {
	t.Helper()
	raws, err := s.SelectAll(context.Background(), table)
	if err != nil {
		t.Fatalf("select %s: %v", table, err)
	}
	rows := make([]map[string]any, 0, len(raws))
	for _, r := range raws {
		var m map[string]any
		if err := json.Unmarshal(r, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		rows = append(rows, m)
	}
	return rows
}

func TestMemoryStoreTeamDeleteCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	keep := insert(t, s, Teams, map[string]any{"name": "Keep", "user_id": "u1"})
	drop := insert(t, s, Teams, map[string]any{"name": "Drop", "user_id": "u1"})
	kp := insert(t, s, Players, map[string]any{"name": "A", "team_id": keep})
	dp := insert(t, s, Players, map[string]any{"name": "B", "team_id": drop})
	insert(t, s, Matches, map[string]any{"team_id": drop, "opponent": "X"})
	insert(t, s, TrainingSessions, map[string]any{"team_id": drop, "attended_player_ids": []string{dp}})
	insert(t, s, TrainingSessions, map[string]any{"team_id": keep, "attended_player_ids": []string{kp, dp}})

	if err := s.DeleteByID(ctx, Teams, drop); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if n := len(selectRows(t, s, Teams)); n != 1 {
		t.Errorf("teams = %d, want 1", n)
	}
	players := selectRows(t, s, Players)
	if len(players) != 1 || players[0]["id"] != kp {
		t.Errorf("players = %v, want only %s", players, kp)
	}
	if n := len(selectRows(t, s, Matches)); n != 0 {
		t.Errorf("matches = %d, want 0", n)
	}
	sessions := selectRows(t, s, TrainingSessions)
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	attended := sessions[0]["attended_player_ids"].([]any)
	if len(attended) != 1 || attended[0] != kp {
		t.Errorf("attended = %v, want [%s]", attended, kp)
	}
}

func TestMemoryStoreUpdateAndIncrement(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := insert(t, s, Players, map[string]any{"name": "A", "team_id": "t", "trainings_attended": 3})

	if err := s.UpdateByID(ctx, Players, id, map[string]any{"name": "B"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.IncrementByID(ctx, Players, id, "trainings_attended", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.UpdateByID(ctx, Players, "missing", map[string]any{"name": "C"}); err != nil {
		t.Errorf("update of a missing id should succeed, got %v", err)
	}

	row := selectRows(t, s, Players)[0]
	if row["name"] != "B" || row["trainings_attended"] != float64(4) {
		t.Errorf("row = %v", row)
	}
}

func TestMemoryStoreFailOn(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.FailOn(OpSelect, Matches, "", boom)

	if _, err := s.SelectAll(context.Background(), Matches); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := s.SelectAll(context.Background(), Teams); err != nil {
		t.Fatalf("teams should be unaffected: %v", err)
	}

	s.FailOn(OpSelect, Matches, "", nil)
	if _, err := s.SelectAll(context.Background(), Matches); err != nil {
		t.Fatalf("cleared failure still returned %v", err)
	}
	if got := s.CountCalls(OpSelect, Matches); got != 2 {
		t.Errorf("select calls = %d, want 2", got)
	}
}

func TestMemoryStoreUnknownTable(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.SelectAll(context.Background(), Table("referees")); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("err = %v, want ErrUnknownTable", err)
	}
}
