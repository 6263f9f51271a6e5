package models

import "errors"

// ErrRecordNotFound is returned by stores when a lookup matches no row.
var ErrRecordNotFound = errors.New("record not found")

// ErrDuplicateKey is returned by stores when an insert hits a unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")
