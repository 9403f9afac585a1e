package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOpenPositionExists is returned when inserting a position would
	// violate the at-most-one-open-position-per-(recommender, token)
	// invariant.
	ErrOpenPositionExists = errors.New("open position already exists for recommender and token")
)
