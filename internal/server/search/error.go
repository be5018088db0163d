// Package search compiles the Lucene-style object query language into a SQL
// predicate. The predicate is meant to be ANDed with the caller's visibility
// clause inside a single statement.
package search

import (
	"fmt"

	"github.com/dmitrijs2005/artivault/internal/common"
)

// ErrorKind categorizes query errors for programmatic handling.
type ErrorKind string

const (
	ErrorKindSyntax   ErrorKind = "syntax"   // malformed query text
	ErrorKindSemantic ErrorKind = "semantic" // well-formed but meaningless for the object type
)

// QueryError is returned for every rejected query.
type QueryError struct {
	Kind     ErrorKind
	Position int // byte offset into the query text
	Message  string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s error at position %d: %s", e.Kind, e.Position, e.Message)
}

// Unwrap makes every QueryError match common.ErrBadRequest.
func (e *QueryError) Unwrap() error { return common.ErrBadRequest }

func syntaxErrorf(pos int, format string, args ...any) *QueryError {
	return &QueryError{Kind: ErrorKindSyntax, Position: pos, Message: fmt.Sprintf(format, args...)}
}

func semanticErrorf(pos int, format string, args ...any) *QueryError {
	return &QueryError{Kind: ErrorKindSemantic, Position: pos, Message: fmt.Sprintf(format, args...)}
}
