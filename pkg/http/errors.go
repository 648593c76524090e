package http

import (
	"fmt"
	"net/http"
)

// AppError is an error the API reports to clients as-is. Err stays
// server-side and is only logged.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParam attaches a detail clients can act on, e.g. how many samples
// a training run was short by.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{}, 2)
	}
	e.Params[key] = value
	return e
}

// WithError records the cause for logs.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusConflict:            "ERR_CONFLICT",
	http.StatusInternalServerError: "ERR_INTERNAL",
	http.StatusServiceUnavailable:  "ERR_UNAVAILABLE",
}

func newError(status int, message string) *AppError {
	return &AppError{Code: statusCodes[status], Message: message, Status: status}
}

// BadRequestError is a 400: the request itself cannot be served.
func BadRequestError(message string) *AppError {
	return newError(http.StatusBadRequest, message)
}

// NotFoundErrorf is a 404, e.g. a ticker without enough history.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newError(http.StatusNotFound, fmt.Sprintf(format, a...))
}

// ConflictError is a 409, e.g. a training run already in progress.
func ConflictError(message string) *AppError {
	return newError(http.StatusConflict, message)
}

// UnavailableError is a 503: a bar source, queue or predictor is down.
func UnavailableError(message string) *AppError {
	return newError(http.StatusServiceUnavailable, message)
}

func InternalError(message string) *AppError {
	return newError(http.StatusInternalServerError, message)
}
