package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
)

// CollectionHandler serves the caller's village collection.
type CollectionHandler struct {
	collections *service.CollectionService
	logger      *slog.Logger
}

func NewCollectionHandler(collections *service.CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{collections: collections, logger: logger}
}

type addCollectionRequest struct {
	VillageID int64 `json:"villageId"`
}

// HandleList returns one page of the collection, oldest entry first.
//
// HTTP: GET /api/collections?page=0&size=20
func (h *CollectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.collections.List(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", result)
}

// HandleAdd collects a village.
//
// HTTP: POST /api/collections
// REQUEST BODY: {"villageId": 12}
func (h *CollectionHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req addCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entry, err := h.collections.Add(r.Context(), userID, req.VillageID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, "컬렉션에 추가되었습니다.", entry)
}

// HandleDelete removes an entry by collection ID.
//
// HTTP: DELETE /api/collections/{id}
func (h *CollectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.collections.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "컬렉션에서 제거되었습니다.", struct{}{})
}

// HandleStats counts the collection per region.
//
// HTTP: GET /api/collections/stats
func (h *CollectionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	stats, err := h.collections.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", stats)
}
