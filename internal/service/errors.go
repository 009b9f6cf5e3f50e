package service

import (
	"errors"

	"github.com/mr1hm/fixr/internal/ratelimit"
)

var (
	ErrInvalidID = errors.New("invalid id")
	ErrNotFound  = errors.New("not found")
)

// RateLimitError means the caller used up its window. It is not a fault.
type RateLimitError struct {
	ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return "Too many requests. Please slow down."
}
