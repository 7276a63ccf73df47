package services

import "errors"

// Shared errors surfaced to the HTTP layer for status mapping.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrMatchNotFound = errors.New("match not found")
	ErrTeamNotFound  = errors.New("team not found")

	ErrBracketTooSmall = errors.New("at least one alliance is required to build a bracket")
)
