package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// plainGateway hides MemoryStore's IncrementByID.
type plainGateway struct{ gateway.Gateway }

func TestInsertMapsWireNames(t *testing.T) {
	mem := gateway.NewMemoryStore()
	repo := NewTeams(mem)

	team, err := repo.Insert(context.Background(), model.NewTeam{Name: "Falcons", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if team.ID == "" || team.Name != "Falcons" || team.OwnerID != "u1" {
		t.Fatalf("team = %+v", team)
	}

	raws, _ := mem.SelectAll(context.Background(), gateway.Teams)
	var row map[string]any
	json.Unmarshal(raws[0], &row)
	if row["user_id"] != "u1" {
		t.Errorf("stored row = %v, want user_id column", row)
	}
	if _, ok := row["ownerId"]; ok {
		t.Errorf("domain field name leaked into the store: %v", row)
	}
}

func TestFetchAllMapsPlayer(t *testing.T) {
	mem := gateway.NewMemoryStore()
	mem.Insert(context.Background(), gateway.Players, map[string]any{
		"name": "Sam", "team_id": "t1", "matches_played": 5,
		"trainings_attended": 3, "goals": 2, "assists": 1,
	})

	players, err := NewPlayers(mem).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("players = %d", len(players))
	}
	p := players[0]
	if p.TeamID != "t1" || p.MatchesPlayed != 5 || p.TrainingsAttended != 3 || p.Goals != 2 || p.Assists != 1 {
		t.Errorf("player = %+v", p)
	}
}

func TestFetchAllIsIdempotent(t *testing.T) {
	mem := gateway.NewMemoryStore()
	repo := NewMatches(mem)
	ctx := context.Background()
	repo.Insert(ctx, model.NewMatch{TeamID: "t1", Opponent: "Rovers", Date: "2024-06-01", Time: "15:00", Location: "Home"})
	repo.Insert(ctx, model.NewMatch{TeamID: "t1", Opponent: "United", Date: "2024-06-08", Time: "11:00", Location: "Away"})

	a, _ := repo.FetchAll(ctx)
	b, _ := repo.FetchAll(ctx)
	if len(a) != 2 || len(a) != len(b) {
		t.Fatalf("lengths %d, %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSessionAttendeesNeverNil(t *testing.T) {
	mem := gateway.NewMemoryStore()
	mem.Insert(context.Background(), gateway.TrainingSessions, map[string]any{"team_id": "t1", "date": "2024-01-01", "attended_player_ids": nil})

	sessions, err := NewTrainingSessions(mem).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if sessions[0].AttendedPlayerIDs == nil {
		t.Error("AttendedPlayerIDs should be an empty set, not nil")
	}
}

func TestUpdateSendsOnlyProvidedFields(t *testing.T) {
	mem := gateway.NewMemoryStore()
	repo := NewPlayers(mem)
	ctx := context.Background()

	if err := repo.UpdateByID(ctx, "p1", model.PlayerUpdate{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if n := mem.CountCalls(gateway.OpUpdate, ""); n != 0 {
		t.Fatalf("empty update made %d calls", n)
	}

	repo.UpdateByID(ctx, "p1", model.PlayerUpdate{Name: strPtr("Sam"), TrainingsAttended: intPtr(4)})
	calls := mem.Calls()
	last := calls[len(calls)-1]
	if len(last.Fields) != 2 || last.Fields["name"] != "Sam" || last.Fields["trainings_attended"] != 4 {
		t.Errorf("fields = %v", last.Fields)
	}
}

func TestErrorsNameTheCollection(t *testing.T) {
	mem := gateway.NewMemoryStore()
	boom := errors.New("boom")
	mem.FailOn(gateway.OpSelect, gateway.Matches, "", boom)
	mem.FailOn(gateway.OpInsert, gateway.Players, "", boom)

	_, err := NewMatches(mem).FetchAll(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != model.KindMatches || !errors.Is(err, boom) {
		t.Fatalf("fetch err = %v", err)
	}

	_, err = NewPlayers(mem).Insert(context.Background(), model.NewPlayer{Name: "Sam", TeamID: "t1"})
	var we *WriteError
	if !errors.As(err, &we) || we.Kind != model.KindPlayers || we.Op != OpInsert {
		t.Fatalf("write err = %v", err)
	}
	if we.Payload == nil {
		t.Error("write error should carry the payload")
	}
}

func TestIncrementRequiresSupport(t *testing.T) {
	mem := gateway.NewMemoryStore()
	if !NewPlayers(mem).SupportsIncrement() {
		t.Fatal("memory store supports increments")
	}

	repo := NewPlayers(plainGateway{mem})
	if repo.SupportsIncrement() {
		t.Fatal("wrapped gateway should not report increment support")
	}
	err := repo.IncrementByID(context.Background(), "p1", ColTrainingsAttended, 1)
	if !errors.Is(err, ErrIncrementUnsupported) {
		t.Fatalf("err = %v, want ErrIncrementUnsupported", err)
	}
}
