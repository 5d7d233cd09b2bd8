package model

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"p1", "p2", "p1", "", "p3", "p2"})
	want := []string{"p1", "p2", "p3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedupe = %v, want %v", got, want)
	}
}

func TestPlayerUpdateChangesFrom(t *testing.T) {
	p := Player{ID: "p1", Name: "Sam", TeamID: "t1", Goals: 2}

	tests := []struct {
		name    string
		update  PlayerUpdate
		changed bool
	}{
		{"empty", PlayerUpdate{}, false},
		{"same name", PlayerUpdate{Name: strPtr("Sam")}, false},
		{"same goals", PlayerUpdate{Goals: intPtr(2)}, false},
		{"new name", PlayerUpdate{Name: strPtr("Samuel")}, true},
		{"same name new assists", PlayerUpdate{Name: strPtr("Sam"), Assists: intPtr(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := tt.update.ChangesFrom(p)
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			if tt.name == "same name new assists" && out.Name != nil {
				t.Errorf("unchanged name should be dropped from the update")
			}
		})
	}
}

func TestTrainingSessionUpdateComparesAsSet(t *testing.T) {
	s := TrainingSession{ID: "s1", TeamID: "t1", Date: "2024-05-01", AttendedPlayerIDs: []string{"a", "b"}}

	if _, changed := (TrainingSessionUpdate{AttendedPlayerIDs: []string{"b", "a"}}).ChangesFrom(s); changed {
		t.Errorf("reordered attendees should not count as a change")
	}
	if _, changed := (TrainingSessionUpdate{AttendedPlayerIDs: []string{"a"}}).ChangesFrom(s); !changed {
		t.Errorf("removing an attendee should count as a change")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"teams":             KindTeams,
		"player":            KindPlayers,
		"matches":           KindMatches,
		"training-sessions": KindTrainingSessions,
		"training_sessions": KindTrainingSessions,
	} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("referees"); err == nil {
		t.Errorf("expected error for unknown kind")
	}
}
