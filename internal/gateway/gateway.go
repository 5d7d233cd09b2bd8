// Package gateway is the boundary to the remote relational store. Every
// implementation exposes the same four table operations; rows cross the
// boundary as raw JSON objects in the store's snake_case shape.
//
// Implementations:
//
//	memory  in-process store (dev, tests)
//	rest    Supabase / PostgREST over HTTP (package rest)
//	pg      Postgres via pgxpool (package pg)
//	sqlite  local file via modernc sqlite (package sqlite)
package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

// Table names, matching migrations/000001_init.up.sql.
type Table string

const (
	Teams            Table = "teams"
	Players          Table = "players"
	Matches          Table = "matches"
	TrainingSessions Table = "training_sessions"
)

// Tables lists every table the gateway serves.
var Tables = []Table{Teams, Players, Matches, TrainingSessions}

// Valid reports whether t is one of the known tables.
func (t Table) Valid() bool {
	for _, k := range Tables {
		if k == t {
			return true
		}
	}
	return false
}

// ErrUnknownTable is returned for a table name outside Tables.
var ErrUnknownTable = errors.New("unknown table")

// Gateway is the generic table API of the remote store. Calls are single
// round trips; implementations never retry.
type Gateway interface {
	SelectAll(ctx context.Context, table Table) ([]json.RawMessage, error)
	// Insert stores row (any JSON-marshalable value without an id) and
	// returns the stored row including the assigned id.
	Insert(ctx context.Context, table Table, row any) (json.RawMessage, error)
	// UpdateByID sets the given columns on the row with id. A missing id
	// is not an error.
	UpdateByID(ctx context.Context, table Table, id string, fields map[string]any) error
	DeleteByID(ctx context.Context, table Table, id string) error
}

// Incrementer is implemented by stores that can add to an integer column
// server-side in one statement.
type Incrementer interface {
	IncrementByID(ctx context.Context, table Table, id, column string, delta int) error
}

// Pinger is implemented by stores with a cheap health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type tokenKey struct{}

// WithAccessToken attaches the signed-in principal's access token to ctx.
// Stores that enforce row-level security forward it with every request.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessTokenFrom returns the token set by WithAccessToken, if any.
func AccessTokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}
