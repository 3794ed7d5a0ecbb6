package http

import (
	"fmt"
	"net/http"
)

// AppError is an application error with a machine code and the logical
// HTTP status it maps to.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an error with the given code, field, message, and
// logical status.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Field:   field,
		Message: message,
		Status:  status,
		Params:  make(map[string]interface{}),
	}
}

// WithParam attaches one detail parameter.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}
