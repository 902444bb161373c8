package store

import "errors"

var (
    ErrNotFound        = errors.New("not found")
    ErrAggregateExists = errors.New("aggregate exists")
    ErrInvalidLimit    = errors.New("invalid limit")
)
