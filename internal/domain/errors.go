package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session closed")
	ErrEmptyVisitorName = errors.New("visitor name is required")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
)
