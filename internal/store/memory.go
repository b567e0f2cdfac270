package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	collection string
	id         string
	data       Data
	updatedAt  time.Time
}

// MemoryStore keeps documents in process. It follows the same semantics as
// MongoStore and is used for local runs (STORE_BACKEND=memory) and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memDoc
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*memDoc),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return d.snapshot()
}

func (s *MemoryStore) Set(ctx context.Context, path string, data Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	col, id, err := Split(path)
	if err != nil {
		return err
	}
	cp, err := clone(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = &memDoc{collection: col, id: id, data: cp, updatedAt: s.now().UTC()}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := Split(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[path]
	if !ok {
		return ErrNotFound
	}
	// apply on a copy so a failing field leaves the document untouched
	next, err := clone(d.data)
	if err != nil {
		return err
	}
	for key, v := range fields {
		if err := applyField(next, key, v); err != nil {
			return fmt.Errorf("store: update %s.%s: %w", path, key, err)
		}
	}
	d.data = next
	d.updatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := Split(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	return s.Query(ctx, Query{Collection: collection})
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data Data) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.Set(ctx, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var matched []*memDoc
	for _, d := range s.docs {
		if d.collection != q.Collection || !d.matches(q.Where) {
			continue
		}
		matched = append(matched, d)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := Field(matched[i].data, q.OrderBy)
			b, _ := Field(matched[j].data, q.OrderBy)
			fa, _ := AsFloat64(a)
			fb, _ := AsFloat64(b)
			if fa != fb {
				if q.Descending {
					return fa > fb
				}
				return fa < fb
			}
		}
		return matched[i].id < matched[j].id
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*Snapshot, 0, len(matched))
	for _, d := range matched {
		snap, err := d.snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (d *memDoc) snapshot() (*Snapshot, error) {
	cp, err := clone(d.data)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ID:        d.id,
		Path:      d.collection + "/" + d.id,
		Data:      cp,
		UpdatedAt: d.updatedAt,
	}, nil
}

func (d *memDoc) matches(where []Filter) bool {
	for _, f := range where {
		v, ok := Field(d.data, f.Field)
		if !ok || !sameValue(v, f.Value) {
			return false
		}
	}
	return true
}

func splitField(path string) []string {
	return strings.Split(path, ".")
}

// applyField sets, deletes or transforms one dotted field, creating
// intermediate maps as needed (same as Mongo's $set on dotted paths).
func applyField(doc Data, path string, v any) error {
	keys := splitField(path)
	parent := map[string]any(doc)
	for _, k := range keys[:len(keys)-1] {
		next, ok := asMap(parent[k])
		if !ok {
			if _, exists := parent[k]; exists {
				return fmt.Errorf("field %q is not a document", k)
			}
			next = map[string]any{}
			parent[k] = next
		} else {
			// re-seat so that writes land in a plain map
			parent[k] = next
		}
		parent = next
	}
	last := keys[len(keys)-1]

	t, isTransform := v.(FieldTransform)
	if !isTransform {
		nv, err := normalizeValue(v)
		if err != nil {
			return err
		}
		parent[last] = nv
		return nil
	}

	switch t.kind {
	case transformDelete:
		delete(parent, last)
		return nil
	case transformArrayUnion, transformArrayRemove:
		// a missing field starts empty, an explicit null is rejected like Mongo does
		if v, exists := parent[last]; exists && v == nil {
			return fmt.Errorf("field %q is null, not an array", last)
		}
		cur, ok := asSlice(parent[last])
		if !ok {
			return fmt.Errorf("field %q is not an array", last)
		}
		vals := make([]any, 0, len(t.values))
		for _, raw := range t.values {
			nv, err := normalizeValue(raw)
			if err != nil {
				return err
			}
			vals = append(vals, nv)
		}
		if t.kind == transformArrayUnion {
			parent[last] = union(cur, vals)
		} else {
			parent[last] = remove(cur, vals)
		}
		return nil
	}
	return fmt.Errorf("unknown field transform")
}

func union(cur, vals []any) []any {
	out := append([]any{}, cur...)
	for _, v := range vals {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func remove(cur, vals []any) []any {
	out := make([]any, 0, len(cur))
	for _, c := range cur {
		if !containsValue(vals, c) {
			out = append(out, c)
		}
	}
	return out
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if sameValue(x, v) {
			return true
		}
	}
	return false
}
