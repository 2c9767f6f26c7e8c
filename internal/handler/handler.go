// Package handler translates HTTP requests into service calls.
//
// HANDLER RESPONSIBILITIES:
//   - Decode the request (path params, query, JSON or multipart body)
//   - Call exactly one service method
//   - Encode the result with the response envelope
//
// Handlers never touch the database and never decide business rules: a
// daily limit or an ownership check lives in the service, and the handler
// only maps the returned *apperror.AppError to a status code.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
)

// maxJSONBody caps JSON request bodies. Photos go through multipart and
// have their own limit.
const maxJSONBody = 1 << 20

// decodeJSON reads one JSON object from the body into dst.
//
// An empty body decodes as "{}" so endpoints whose fields are all optional
// (POST /gacha/draw) accept a bare POST.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		return apperror.WithMessage(apperror.CodeBadRequest, "요청 본문이 올바른 JSON이 아닙니다.")
	}
}

// pathID parses the {id} URL parameter. Non-numeric and non-positive IDs are
// a client error, not a lookup miss.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.WithMessage(apperror.CodeBadRequest, "잘못된 ID입니다.")
	}
	return id, nil
}

// pageParams reads ?page=&size=. Missing values fall back to the service
// defaults; malformed values are rejected.
func pageParams(r *http.Request) (service.PageRequest, error) {
	var (
		q   = r.URL.Query()
		req service.PageRequest
		err error
	)
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil || req.Page < 0 {
			return req, apperror.ValidationFailed("page", "page는 0 이상의 정수여야 합니다.")
		}
	}
	if v := strings.TrimSpace(q.Get("size")); v != "" {
		if req.Size, err = strconv.Atoi(v); err != nil || req.Size < 1 {
			return req, apperror.ValidationFailed("size", "size는 1 이상의 정수여야 합니다.")
		}
	}
	return req, nil
}

// currentUser returns the authenticated user ID. Routes behind RequireAuth
// always have one; the check only guards against a missing middleware.
func currentUser(r *http.Request) (int64, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return 0, apperror.New(apperror.CodeUnauthorized)
	}
	return id, nil
}

// writeError logs unexpected failures and writes the error envelope.
// Domain errors are expected outcomes and are not logged here; the
// request logger already records their status.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	response.Error(w, err)
}
