package db

import (
	"io/fs"
	"testing"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/gbfc":     "pgx5://u:p@localhost:5432/gbfc",
		"postgresql://u@db/gbfc?sslmode=disable": "pgx5://u@db/gbfc?sslmode=disable",
		"pgx5://already":                         "pgx5://already",
	}
	for in, want := range tests {
		if got := migrateURL(in); got != want {
			t.Errorf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	downs, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	if len(ups) != len(downs) {
		t.Fatalf("%d up migrations, %d down", len(ups), len(downs))
	}
}
