package service

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrUpstream     = errors.New("upstream service failed")
)

// ValidationError lists every problem found in one request.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

type reasons []string

func (r *reasons) add(reason string) {
	*r = append(*r, reason)
}

func (r reasons) err() error {
	if len(r) == 0 {
		return nil
	}
	return &ValidationError{Reasons: r}
}
