package repository

import (
	"fmt"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

// Op names a write operation in a WriteError.
type Op string

const (
	OpInsert    Op = "insert"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpIncrement Op = "increment"
)

// FetchError means a collection could not be read.
type FetchError struct {
	Kind model.Kind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError means an insert, update, delete or increment was rejected.
// Payload holds the row or field map that was sent, for diagnostics.
type WriteError struct {
	Kind    model.Kind
	Op      Op
	ID      string
	Payload any
	Err     error
}

func (e *WriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
