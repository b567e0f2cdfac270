package store

import (
	"context"
	"errors"
	"time"

	"mediatrack/internal/metrics"
)

// Instrumented wraps a Store and records every call in the store metrics.
func Instrumented(s Store) Store {
	return &instrumented{next: s}
}

type instrumented struct {
	next Store
}

func observe(op string, start time.Time, err error) {
	res := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		res = "not_found"
	case err != nil:
		res = "error"
	}
	metrics.RecordStoreOp(op, res, time.Since(start))
}

func (i *instrumented) Get(ctx context.Context, path string) (*Snapshot, error) {
	start := time.Now()
	snap, err := i.next.Get(ctx, path)
	observe("get", start, err)
	return snap, err
}

func (i *instrumented) Set(ctx context.Context, path string, data Data) error {
	start := time.Now()
	err := i.next.Set(ctx, path, data)
	observe("set", start, err)
	return err
}

func (i *instrumented) Update(ctx context.Context, path string, fields Data) error {
	start := time.Now()
	err := i.next.Update(ctx, path, fields)
	observe("update", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.Delete(ctx, path)
	observe("delete", start, err)
	return err
}

func (i *instrumented) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	start := time.Now()
	out, err := i.next.List(ctx, collection)
	observe("list", start, err)
	return out, err
}

func (i *instrumented) Add(ctx context.Context, collection string, data Data) (string, error) {
	start := time.Now()
	id, err := i.next.Add(ctx, collection, data)
	observe("add", start, err)
	return id, err
}

func (i *instrumented) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	start := time.Now()
	out, err := i.next.Query(ctx, q)
	observe("query", start, err)
	return out, err
}
