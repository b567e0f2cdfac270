package repository

import "errors"

// ErrNotFound is returned by targeted updates whose document is gone.
// Lookups return nil, nil instead.
var ErrNotFound = errors.New("document not found")
