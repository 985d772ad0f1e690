package types

import "errors"

// Field projection errors
var (
	ErrFieldPathTooDeep = errors.New("field path too deep")
	ErrInvalidFieldPath = errors.New("invalid field path")
)

// Search result errors
var (
	ErrEmptyID               = errors.New("id cannot be empty")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
