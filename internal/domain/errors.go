package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnknownSort signals a sort key with no aggregation registered for it.
	ErrUnknownSort = errors.New("unknown sort key")
	// ErrMissingAggregation signals a referenced aggregation alias absent from the dialect.
	ErrMissingAggregation = errors.New("missing aggregation definition")
	// ErrInvalidCursor signals a malformed pagination cursor.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrInvalidFilter signals a malformed search filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrNoProjects signals a search without project scope.
	ErrNoProjects = errors.New("at least one project is required")
)
