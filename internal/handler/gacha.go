package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
)

// GachaHandler serves the daily draw.
type GachaHandler struct {
	gacha  *service.GachaService
	logger *slog.Logger
}

func NewGachaHandler(gacha *service.GachaService, logger *slog.Logger) *GachaHandler {
	return &GachaHandler{gacha: gacha, logger: logger}
}

// drawRequest narrows the draw pool. Both fields are optional and the body
// itself may be empty.
type drawRequest struct {
	Region      string `json:"region"`
	ProgramType string `json:"programType"`
}

// HandleStatus reports whether the caller can still draw today.
//
// HTTP: GET /api/gacha/status
func (h *GachaHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status, err := h.gacha.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", status)
}

// HandleDraw draws one village.
//
// HTTP: POST /api/gacha/draw
// REQUEST BODY (optional): {"region":"강원특별자치도","programType":"농촌"}
func (h *GachaHandler) HandleDraw(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req drawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.gacha.Draw(r.Context(), userID, model.VillageFilter{
		Region:      req.Region,
		ProgramType: req.ProgramType,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "가챠 뽑기 성공", result)
}
