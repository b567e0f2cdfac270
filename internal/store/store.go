// Package store is the remote document store boundary: hierarchical keyed
// documents ("users/{uid}/watchlist/{id}") with get, set, field update, delete,
// list-by-collection and bounded queries. There are no multi-document
// transactions.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("store: document not found")
	ErrInvalidPath = errors.New("store: invalid path")
)

// Data is the field set of a document.
type Data map[string]any

// Snapshot is a document as read from the store. UpdatedAt is assigned by the
// store on every write.
type Snapshot struct {
	ID        string
	Path      string
	Data      Data
	UpdatedAt time.Time
}

// Filter is an equality match on a (possibly dotted) field path.
type Filter struct {
	Field string
	Value any
}

// Query is a bounded query over one collection. Only equality filters and a
// single sort field are supported; anything richer is computed by the caller.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is implemented by MongoStore and MemoryStore.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path string) (*Snapshot, error)
	// Set overwrites the whole document, creating it if needed.
	Set(ctx context.Context, path string, data Data) error
	// Update merges the given fields into an existing document. Keys may be
	// dotted paths and values may be a FieldTransform. Returns ErrNotFound when
	// the document does not exist.
	Update(ctx context.Context, path string, fields Data) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// List returns every document directly under collection, ordered by id.
	List(ctx context.Context, collection string) ([]*Snapshot, error)
	// Add creates a document with a store-assigned id and returns the id.
	Add(ctx context.Context, collection string, data Data) (string, error)
	Query(ctx context.Context, q Query) ([]*Snapshot, error)
}

type transformKind int

const (
	transformDelete transformKind = iota + 1
	transformArrayUnion
	transformArrayRemove
)

// FieldTransform is a server-side field operation used as a value in Update.
type FieldTransform struct {
	kind   transformKind
	values []any
}

// DeleteField removes the field.
func DeleteField() FieldTransform {
	return FieldTransform{kind: transformDelete}
}

// ArrayUnion appends each value not already present in the array field.
func ArrayUnion(values ...any) FieldTransform {
	return FieldTransform{kind: transformArrayUnion, values: values}
}

// ArrayRemove removes every occurrence of each value from the array field.
func ArrayRemove(values ...any) FieldTransform {
	return FieldTransform{kind: transformArrayRemove, values: values}
}
