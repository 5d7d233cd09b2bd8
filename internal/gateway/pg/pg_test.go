package pg

import (
	"errors"
	"testing"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
)

func TestInsertSQL(t *testing.T) {
	fields, _, err := toFields(map[string]any{"name": "Falcons", "user_id": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	got := insertSQL(`"teams"`, columns(fields))
	want := `INSERT INTO "teams" AS t ("name", "user_id") SELECT "name", "user_id" FROM json_populate_record(NULL::"teams", $1::json) RETURNING row_to_json(t.*)`
	if got != want {
		t.Errorf("insertSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestUpdateSQLSkipsID(t *testing.T) {
	got := updateSQL(`"players"`, columns(map[string]any{"id": "x", "trainings_attended": 4, "goals": 1}))
	want := `UPDATE "players" AS t SET "goals" = r."goals", "trainings_attended" = r."trainings_attended" FROM json_populate_record(NULL::"players", $2::json) AS r WHERE t.id::text = $1`
	if got != want {
		t.Errorf("updateSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestIdentRejectsUnknownTable(t *testing.T) {
	if _, err := ident(gateway.Table("pg_authid")); !errors.Is(err, gateway.ErrUnknownTable) {
		t.Fatalf("err = %v, want ErrUnknownTable", err)
	}
	tbl, err := ident(gateway.TrainingSessions)
	if err != nil || tbl != `"training_sessions"` {
		t.Fatalf("ident = %q, %v", tbl, err)
	}
}

func TestToFieldsRejectsNonObject(t *testing.T) {
	if _, _, err := toFields([]string{"a"}); err == nil {
		t.Fatal("expected error for array row")
	}
	if _, _, err := toFields(struct{}{}); err == nil {
		t.Fatal("expected error for empty row")
	}
}
