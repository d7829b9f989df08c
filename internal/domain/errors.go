package domain

import "errors"

var (
	// ErrDateTaken is raised by a ledger when a date slot already exists.
	ErrDateTaken    = errors.New("date already booked")
	ErrInvalidRange = errors.New("end date must be after start date")
)
