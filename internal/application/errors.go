package application

import "errors"

var ErrNotFound = errors.New("not found")

// ErrConflict means the requested dates are taken. It is an expected outcome
// of Book, not a fault.
var ErrConflict = errors.New("conflict")
