package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type updateMeRequest struct {
	Email string `json:"email"`
}

// HandleGetMe returns the profile with live collection and memory counts.
//
// HTTP: GET /api/users/me
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.users.GetMe(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", profile)
}

// HandleUpdateMe changes the email address.
//
// HTTP: PUT /api/users/me
// REQUEST BODY: {"email":"new@example.com"}
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.users.UpdateMe(r.Context(), userID, req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "정보가 수정되었습니다.", profile)
}
