package parser

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateName      = errors.New("duplicate name")
	ErrUndefinedDimension = errors.New("undefined dimension")
	ErrUndefinedVariable  = errors.New("undefined variable")
	ErrMultipleUnlimited  = errors.New("more than one unlimited dimension")
	ErrInvalidSize        = errors.New("invalid dimension size")
	ErrDataShape          = errors.New("data does not match variable shape")
	ErrMixedTypes         = errors.New("mixed string and numeric values")
)

// SyntaxError reports malformed CDL at a 1-based line and column.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

func semanticError(tok token, err error, format string, args ...interface{}) error {
	return fmt.Errorf("%d:%d: %s: %w", tok.line, tok.col, fmt.Sprintf(format, args...), err)
}
