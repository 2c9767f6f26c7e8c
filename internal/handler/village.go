package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
)

// VillageHandler serves the public catalog. Both routes run behind
// OptionalAuth: anonymous callers are welcome, logged-in callers also see
// their collection state on the detail route.
type VillageHandler struct {
	villages *service.VillageService
	logger   *slog.Logger
}

func NewVillageHandler(villages *service.VillageService, logger *slog.Logger) *VillageHandler {
	return &VillageHandler{villages: villages, logger: logger}
}

// HandleList returns one page of the catalog.
//
// HTTP: GET /api/villages?page=0&size=20&region=전라남도&programType=갯벌
func (h *VillageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	filter := model.VillageFilter{
		Region:      q.Get("region"),
		ProgramType: q.Get("programType"),
	}
	response.OK(w, "조회 성공", h.villages.List(r.Context(), filter, page))
}

// HandleGet returns one village.
//
// HTTP: GET /api/villages/{id}
func (h *VillageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context()) // 0 when anonymous
	detail, err := h.villages.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", detail)
}
