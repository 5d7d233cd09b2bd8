package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "anon-key", 6000, 0, nil)
}

func TestSelectAllSendsKeysAndToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rest/v1/players" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("select"); got != "*" {
			t.Errorf("select = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[{"id":"p1","name":"Sam"},{"id":"p2","name":"Ali"}]`))
	})

	ctx := gateway.WithAccessToken(context.Background(), "user-token")
	rows, err := c.SelectAll(ctx, gateway.Players)
	if err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
}

func TestAnonKeyUsedWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer anon-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[]`))
	})
	if _, err := c.SelectAll(context.Background(), gateway.Teams); err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
}

func TestInsertReturnsRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Prefer = %q", got)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Falcons" || body["user_id"] != "u1" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"t1","name":"Falcons","user_id":"u1"}]`))
	})

	row, err := c.Insert(context.Background(), gateway.Teams, map[string]string{"name": "Falcons", "user_id": "u1"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	var got map[string]string
	json.Unmarshal(row, &got)
	if got["id"] != "t1" {
		t.Errorf("row = %s", row)
	}
}

func TestUpdateAndDeleteFilterByID(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		if r.Method == http.MethodPatch {
			b, _ := io.ReadAll(r.Body)
			if string(b) != `{"trainings_attended":4}` {
				t.Errorf("patch body = %s", b)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	if err := c.UpdateByID(ctx, gateway.Players, "p1", map[string]any{"trainings_attended": 4}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}
	if err := c.DeleteByID(ctx, gateway.Matches, "m1"); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}

	want := []string{
		"PATCH /rest/v1/players?id=eq.p1",
		"DELETE /rest/v1/matches?id=eq.m1",
	}
	if len(seen) != len(want) {
		t.Fatalf("requests = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestIncrementCallsRPC(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/increment_column" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var args map[string]any
		json.NewDecoder(r.Body).Decode(&args)
		if args["p_table"] != "players" || args["p_column"] != "trainings_attended" || args["p_delta"] != float64(1) {
			t.Errorf("args = %v", args)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.IncrementByID(context.Background(), gateway.Players, "p1", "trainings_attended", 1); err != nil {
		t.Fatalf("IncrementByID: %v", err)
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"JWT expired"}`))
	})
	_, err := c.SelectAll(context.Background(), gateway.Teams)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", se.Status)
	}
}
