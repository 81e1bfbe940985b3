package service

import "errors"

var (
	// ErrMatchNotFound is returned for operations on an unknown match.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchExists is returned when creating a match whose id is taken.
	ErrMatchExists = errors.New("match already exists")
	// ErrAnalyticsNotFound is returned when a match has no snapshot yet.
	ErrAnalyticsNotFound = errors.New("no analytics for match")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
