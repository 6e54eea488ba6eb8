// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/chimeo/internal/app/onboarding"
	"go.uber.org/zap"
)

// ErrorLogger writes JSON error responses and logs the ones that are ours.
type ErrorLogger struct {
	Log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Body is the shape of every error response.
type Body struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// LogBadRequest answers 400 with userMsg. err is logged at debug level.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Debug(msg, zap.String("path", r.URL.Path), zap.Error(err))
	WriteJSON(w, http.StatusBadRequest, Body{Error: userMsg})
}

// LogServerError answers 500 with userMsg and logs err.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	WriteJSON(w, http.StatusInternalServerError, Body{Error: userMsg})
}

// LogOnboarding maps an onboarding error to its HTTP status:
//
//	*ValidationError      422 with missing/invalid fields
//	ErrUnauthenticated    401
//	ErrNotFound           404
//	ErrInvalidState       409
//	ErrPreconditionFailed 409
//	*PersistenceError     503 "try again"
//	anything else         500
func (e *ErrorLogger) LogOnboarding(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var verr *onboarding.ValidationError
	var perr *onboarding.PersistenceError
	switch {
	case stderrors.As(err, &verr):
		WriteJSON(w, http.StatusUnprocessableEntity, Body{
			Error:   "Some fields are missing or invalid.",
			Missing: verr.Missing,
			Invalid: verr.Invalid,
		})
	case stderrors.Is(err, onboarding.ErrUnauthenticated):
		WriteJSON(w, http.StatusUnauthorized, Body{Error: "Sign in required."})
	case stderrors.Is(err, onboarding.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, Body{Error: "Not found."})
	case stderrors.Is(err, onboarding.ErrInvalidState):
		WriteJSON(w, http.StatusConflict, Body{Error: "This request has already been reviewed."})
	case stderrors.Is(err, onboarding.ErrPreconditionFailed):
		WriteJSON(w, http.StatusConflict, Body{Error: "The record changed; reload and try again."})
	case stderrors.As(err, &perr):
		e.Log.Warn(msg, zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Retry-After", "5")
		WriteJSON(w, http.StatusServiceUnavailable, Body{Error: "The service is temporarily unavailable. Please try again."})
	default:
		e.LogServerError(w, r, msg, err, "An unexpected error occurred.")
	}
}

// NotFound is the router's 404 handler.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, Body{Error: "Not found."})
}

// MethodNotAllowed is the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, Body{Error: "Method not allowed."})
}
