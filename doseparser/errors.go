package doseparser

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat = errors.New("invalid dose string format")
	ErrUnknownRoute  = errors.New("unknown route of administration")
	ErrUnknownVerb   = errors.New("unknown verb command")
	ErrInvalidAmount = errors.New("invalid dose amount")
	ErrVolumeUnit    = errors.New("volume unit has no mass conversion")
)

// ErrorKind categorizes a failure to turn text into a dose entry
type ErrorKind string

const (
	KindFormat        ErrorKind = "format"
	KindUnknownRoute  ErrorKind = "unknown_route"
	KindUnknownVerb   ErrorKind = "unknown_verb"
	KindInvalidAmount ErrorKind = "invalid_amount"
	KindUnexpected    ErrorKind = "unexpected"
)

// ParseError describes why a dose string was rejected
type ParseError struct {
	Kind  ErrorKind
	Input string
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindFormat:
		return fmt.Sprintf("%v. Expected format: %s or %s", ErrInvalidFormat, StandardShape, VerbShape)
	case KindUnknownRoute, KindUnknownVerb:
		return fmt.Sprintf("%v: %s", e.Err, e.Token)
	default:
		if e.Token != "" {
			return fmt.Sprintf("%v (%s)", e.Err, e.Token)
		}
		return e.Err.Error()
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindOf returns the category of err, KindUnexpected for foreign errors
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}
