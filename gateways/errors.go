package gateways

import (
	"errors"
	"fmt"
)

var ErrRetryable = errors.New("retryable")

// CallError is returned by Gateway.Send on any failure.
type CallError struct {
	Model    string
	Attempts int
	Err      error
}

var _ error = new(CallError)

func (c *CallError) Error() string {
	if c.Attempts > 1 {
		return fmt.Sprintf("call %s (%d attempts): %v", c.Model, c.Attempts, c.Err)
	}
	return fmt.Sprintf("call %s: %v", c.Model, c.Err)
}

func (c *CallError) Unwrap() error {
	return c.Err
}

type ErrorResponse struct {
	Error *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code           any     `json:"code,omitempty"`
	Message        string  `json:"message,omitempty"`
	Param          *string `json:"param,omitempty"`
	Type           string  `json:"type,omitempty"`
	HTTPStatusCode int     `json:"-"`
}

func (e *APIError) Error() string {
	if e.HTTPStatusCode != 0 {
		return fmt.Sprintf("status %d: %s", e.HTTPStatusCode, e.Message)
	}
	return e.Message
}

func isRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}
