// Package repository maps each domain collection to its store table. A
// Repository translates between the camelCase domain types in package model
// and the snake_case rows the gateway moves, and wraps every gateway failure
// in a FetchError or WriteError naming the collection.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

// ColTrainingsAttended is the store column behind Player.TrainingsAttended.
const ColTrainingsAttended = "trainings_attended"

// ErrIncrementUnsupported is returned by IncrementByID when the gateway has
// no server-side increment.
var ErrIncrementUnsupported = errors.New("store does not support server-side increments")

// Repository is the generic table mapper. E is the entity, N the insert
// value and U the partial update.
type Repository[E, N, U any] struct {
	gw           gateway.Gateway
	kind         model.Kind
	table        gateway.Table
	decode       func(json.RawMessage) (E, error)
	encodeNew    func(N) any
	encodeUpdate func(U) map[string]any
}

// Kind returns the collection this repository serves.
func (r *Repository[E, N, U]) Kind() model.Kind { return r.kind }

// FetchAll reads every row of the table. On failure the returned slice is
// nil and the error is a *FetchError; callers treat the collection as empty.
func (r *Repository[E, N, U]) FetchAll(ctx context.Context) ([]E, error) {
	rows, err := r.gw.SelectAll(ctx, r.table)
	if err != nil {
		return nil, &FetchError{Kind: r.kind, Err: err}
	}
	out := make([]E, 0, len(rows))
	for i, raw := range rows {
		e, err := r.decode(raw)
		if err != nil {
			return nil, &FetchError{Kind: r.kind, Err: fmt.Errorf("decode row %d: %w", i, err)}
		}
		out = append(out, e)
	}
	return out, nil
}

// Insert stores v and returns the entity with its store-assigned id.
func (r *Repository[E, N, U]) Insert(ctx context.Context, v N) (E, error) {
	var zero E
	row := r.encodeNew(v)
	raw, err := r.gw.Insert(ctx, r.table, row)
	if err != nil {
		return zero, &WriteError{Kind: r.kind, Op: OpInsert, Payload: row, Err: err}
	}
	e, err := r.decode(raw)
	if err != nil {
		return zero, &WriteError{Kind: r.kind, Op: OpInsert, Payload: row, Err: fmt.Errorf("decode inserted row: %w", err)}
	}
	return e, nil
}

// UpdateByID writes only the fields set in u. An empty update makes no call.
func (r *Repository[E, N, U]) UpdateByID(ctx context.Context, id string, u U) error {
	fields := r.encodeUpdate(u)
	if len(fields) == 0 {
		return nil
	}
	if err := r.gw.UpdateByID(ctx, r.table, id, fields); err != nil {
		return &WriteError{Kind: r.kind, Op: OpUpdate, ID: id, Payload: fields, Err: err}
	}
	return nil
}

func (r *Repository[E, N, U]) DeleteByID(ctx context.Context, id string) error {
	if err := r.gw.DeleteByID(ctx, r.table, id); err != nil {
		return &WriteError{Kind: r.kind, Op: OpDelete, ID: id, Err: err}
	}
	return nil
}

// SupportsIncrement reports whether IncrementByID can be used.
func (r *Repository[E, N, U]) SupportsIncrement() bool {
	_, ok := r.gw.(gateway.Incrementer)
	return ok
}

// IncrementByID adds delta to column server-side.
func (r *Repository[E, N, U]) IncrementByID(ctx context.Context, id, column string, delta int) error {
	inc, ok := r.gw.(gateway.Incrementer)
	if !ok {
		return &WriteError{Kind: r.kind, Op: OpIncrement, ID: id, Err: ErrIncrementUnsupported}
	}
	if err := inc.IncrementByID(ctx, r.table, id, column, delta); err != nil {
		return &WriteError{Kind: r.kind, Op: OpIncrement, ID: id, Payload: map[string]any{column: delta}, Err: err}
	}
	return nil
}

// --------------------------------------------------------------------------
// Concrete repositories
// --------------------------------------------------------------------------

type (
	Teams            = Repository[model.Team, model.NewTeam, model.TeamUpdate]
	Players          = Repository[model.Player, model.NewPlayer, model.PlayerUpdate]
	Matches          = Repository[model.Match, model.NewMatch, model.MatchUpdate]
	TrainingSessions = Repository[model.TrainingSession, model.NewTrainingSession, model.TrainingSessionUpdate]
)

func NewTeams(gw gateway.Gateway) *Teams {
	return &Teams{
		gw:           gw,
		kind:         model.KindTeams,
		table:        gateway.Teams,
		decode:       decodeTeam,
		encodeNew:    encodeNewTeam,
		encodeUpdate: encodeTeamUpdate,
	}
}

func NewPlayers(gw gateway.Gateway) *Players {
	return &Players{
		gw:           gw,
		kind:         model.KindPlayers,
		table:        gateway.Players,
		decode:       decodePlayer,
		encodeNew:    encodeNewPlayer,
		encodeUpdate: encodePlayerUpdate,
	}
}

func NewMatches(gw gateway.Gateway) *Matches {
	return &Matches{
		gw:           gw,
		kind:         model.KindMatches,
		table:        gateway.Matches,
		decode:       decodeMatch,
		encodeNew:    encodeNewMatch,
		encodeUpdate: encodeMatchUpdate,
	}
}

func NewTrainingSessions(gw gateway.Gateway) *TrainingSessions {
	return &TrainingSessions{
		gw:           gw,
		kind:         model.KindTrainingSessions,
		table:        gateway.TrainingSessions,
		decode:       decodeTrainingSession,
		encodeNew:    encodeNewTrainingSession,
		encodeUpdate: encodeTrainingSessionUpdate,
	}
}

// Set bundles the four repositories.
type Set struct {
	Teams            *Teams
	Players          *Players
	Matches          *Matches
	TrainingSessions *TrainingSessions
}

func NewSet(gw gateway.Gateway) *Set {
	return &Set{
		Teams:            NewTeams(gw),
		Players:          NewPlayers(gw),
		Matches:          NewMatches(gw),
		TrainingSessions: NewTrainingSessions(gw),
	}
}
