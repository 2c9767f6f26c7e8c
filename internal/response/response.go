// Package response writes the JSON envelope every endpoint answers with.
//
// ENVELOPE:
//
//	success: {"success":true,  "message":"...", "data":{...}}
//	failure: {"success":false, "message":"...", "error":"DAILY_LIMIT_EXCEEDED"}
//
// Clients switch on "error"; "message" is for people.
//
// WHY A PACKAGE OF ITS OWN?
// Handlers, the auth middleware and the rate limiter all answer with the
// same envelope. Keeping the writer here lets auth and middleware use it
// without importing handler.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/village-gacha/internal/apperror"
)

// Envelope is the success shape. Data is omitted when nil.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorEnvelope is the failure shape. Field names the offending input for
// validation errors.
type ErrorEnvelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Error   apperror.Code `json:"error"`
	Field   string        `json:"field,omitempty"`
}

// JSON writes data with the given status.
//
// Headers and status must be written before the body: once Encode writes,
// later header changes are silently ignored.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent, all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Error maps err to a status and writes the failure envelope.
//
// Anything that is not an *apperror.AppError is reported as a generic 500:
// raw errors can carry SQL or file paths and never reach the client. The
// caller is expected to have logged it.
func Error(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.New(apperror.CodeInternal)
	}
	JSON(w, StatusOf(appErr.Code), ErrorEnvelope{
		Success: false,
		Message: appErr.Message,
		Error:   appErr.Code,
		Field:   appErr.Field,
	})
}

// StatusOf is the HTTP status for an error code.
//
//	401  UNAUTHORIZED, INVALID_TOKEN, INVALID_CREDENTIALS
//	403  FORBIDDEN
//	404  *_NOT_FOUND
//	429  DAILY_LIMIT_EXCEEDED, TOO_MANY_REQUESTS
//	500  INTERNAL_SERVER_ERROR
//	400  everything else (validation, duplicates, empty draw pool)
func StatusOf(code apperror.Code) int {
	switch code {
	case apperror.CodeUnauthorized, apperror.CodeInvalidToken, apperror.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case apperror.CodeForbidden:
		return http.StatusForbidden
	case apperror.CodeUserNotFound, apperror.CodeVillageNotFound,
		apperror.CodeCollectionNotFound, apperror.CodeMemoryNotFound:
		return http.StatusNotFound
	case apperror.CodeDailyLimitExceeded, apperror.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case apperror.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
