package api

import (
	"fmt"
	"net/http"
)

// Problem follows the RFC 9457 fields. Routes render only Detail (or Title)
// in the body shape their clients read.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string

	// Log is the internal cause, logged server-side and never rendered.
	Log error
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// Unwrap exposes the internal cause so errors.Is works through a Problem.
func (p *Problem) Unwrap() error {
	return p.Log
}

type ProblemOption func(*Problem)

// NewError creates a generic Problem
func NewError(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithLog attaches an internal error for server-side logging
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

func ValidationError(detail string) *Problem {
	return NewError(http.StatusBadRequest, "Validation Error", detail)
}

// SandboxInputError is returned when a sandbox request carries nothing to run.
func SandboxInputError(detail string) *Problem {
	return NewError(http.StatusBadRequest, "Sandbox Input Error", detail)
}

func NotFoundError(detail string) *Problem {
	return NewError(http.StatusNotFound, "Not Found", detail)
}

func UnauthorizedError(detail string) *Problem {
	return NewError(http.StatusUnauthorized, "Unauthorized", detail)
}

// ExhaustionError reports that no provider could serve the model.
func ExhaustionError(model string, last error) *Problem {
	detail := fmt.Sprintf("Model unavailable: all providers for %s failed. Try a different model. Last error: %v", model, last)
	return NewError(http.StatusServiceUnavailable, "Model Unavailable", detail, WithLog(last))
}

// InternalError creates a standard error for any internal server error
func InternalError(detail string, err error) *Problem {
	return NewError(http.StatusInternalServerError, "Internal Server Error", detail, WithLog(err))
}
