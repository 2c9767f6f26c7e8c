package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
	"github.com/sakif/village-gacha/internal/storage"
)

// maxMultipartBody leaves room for the text fields and multipart framing
// around a photo of the maximum size.
const maxMultipartBody = storage.MaxImageSize + 1<<20

// MemoryHandler serves the travel journal.
//
// Create and update accept either a JSON body or multipart/form-data. Only
// the multipart form can carry a photo (field "image").
type MemoryHandler struct {
	memories *service.MemoryService
	logger   *slog.Logger
}

func NewMemoryHandler(memories *service.MemoryService, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{memories: memories, logger: logger}
}

// memoryRequest is the JSON body. Pointer fields tell "absent" from "empty"
// so an update only changes what the client sent.
type memoryRequest struct {
	VillageID *int64  `json:"villageId"`
	Content   *string `json:"content"`
	VisitDate *string `json:"visitDate"`
}

// HandleList returns one page of the caller's memories.
//
// HTTP: GET /api/memories?page=0&size=20
func (h *MemoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.memories.List(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", result)
}

// HandleGet returns one memory.
//
// HTTP: GET /api/memories/{id}
func (h *MemoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	memory, err := h.memories.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "조회 성공", memory)
}

// HandleCreate stores a new memory.
//
// HTTP: POST /api/memories
// JSON BODY: {"villageId":3,"content":"...","visitDate":"2026-10-01"}
// MULTIPART: the same fields as form values, plus an optional "image" file
func (h *MemoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in, cleanup, err := h.readInput(w, r)
	defer cleanup()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	memory, err := h.memories.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, "추억이 저장되었습니다.", memory)
}

// HandleUpdate changes the supplied fields of a memory.
//
// HTTP: PUT /api/memories/{id}
func (h *MemoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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

	in, cleanup, err := h.readInput(w, r)
	defer cleanup()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	memory, err := h.memories.Update(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "추억이 수정되었습니다.", memory)
}

// HandleDelete removes a memory and its photo.
//
// HTTP: DELETE /api/memories/{id}
func (h *MemoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.memories.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "추억이 삭제되었습니다.", struct{}{})
}

// readInput decodes a create or update body. The returned cleanup removes
// any temporary files the multipart parser spilled to disk and must always
// be called.
func (h *MemoryHandler) readInput(w http.ResponseWriter, r *http.Request) (service.MemoryInput, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req memoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return service.MemoryInput{}, noop, err
		}
		return service.MemoryInput{
			VillageID: req.VillageID,
			Content:   req.Content,
			VisitDate: req.VisitDate,
		}, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.MemoryInput{}, noop, apperror.ValidationFailed("image", "이미지는 5MB 이하여야 합니다.")
		}
		return service.MemoryInput{}, noop, apperror.WithMessage(apperror.CodeBadRequest, "요청 본문을 읽을 수 없습니다.")
	}
	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
		}
	}

	var in service.MemoryInput
	form := r.MultipartForm.Value
	if v, ok := formValue(form, "villageId"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return in, cleanup, apperror.WithMessage(apperror.CodeBadRequest, "잘못된 여행지 ID입니다.")
		}
		in.VillageID = &id
	}
	if v, ok := formValue(form, "content"); ok {
		in.Content = &v
	}
	if v, ok := formValue(form, "visitDate"); ok {
		in.VisitDate = &v
	}

	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		header := files[0]
		if header.Size > storage.MaxImageSize {
			return in, cleanup, apperror.ValidationFailed("image", "이미지는 5MB 이하여야 합니다.")
		}
		f, err := header.Open()
		if err != nil {
			return in, cleanup, apperror.WithMessage(apperror.CodeBadRequest, "이미지를 읽을 수 없습니다.")
		}
		prev := cleanup
		cleanup = func() {
			f.Close()
			prev()
		}
		in.Image = &service.ImageUpload{Filename: header.Filename, Body: f}
	}
	return in, cleanup, nil
}

// formValue returns the first value of a form field and whether the field
// was sent at all.
func formValue(form map[string][]string, key string) (string, bool) {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
