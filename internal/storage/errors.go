package storage

import "errors"

var (
	// ErrDuplicate is reported per record when the document id already exists.
	ErrDuplicate = errors.New("duplicate document id")

	// ErrMissingDSN is returned when a store is opened without a connection string.
	ErrMissingDSN = errors.New("missing connection string")
)
