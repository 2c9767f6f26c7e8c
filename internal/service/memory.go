package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
	"github.com/sakif/village-gacha/internal/storage"
	"github.com/sakif/village-gacha/internal/village"
)

// MaxMemoryLength is the content limit in characters.
const MaxMemoryLength = 1000

// ImageUpload is a photo attached to a create or update request.
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// MemoryInput carries the fields of a create or update. nil means "not
// supplied": on update, only supplied fields change.
type MemoryInput struct {
	VillageID *int64
	Content   *string
	VisitDate *string // YYYY-MM-DD
	Image     *ImageUpload
}

// MemoryService is the per-user travel journal.
//
// Every lookup is scoped by user ID in SQL, so another user's memory is
// indistinguishable from a missing one (MEMORY_NOT_FOUND).
type MemoryService struct {
	memories repository.MemoryRepository
	catalog  *village.Catalog
	images   storage.ImageStore
	day      DayPolicy
	logger   *slog.Logger
	now      func() time.Time
}

func NewMemoryService(
	memories repository.MemoryRepository,
	catalog *village.Catalog,
	images storage.ImageStore,
	day DayPolicy,
	logger *slog.Logger,
) *MemoryService {
	return &MemoryService{
		memories: memories,
		catalog:  catalog,
		images:   images,
		day:      day,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *MemoryService) List(ctx context.Context, userID int64, page PageRequest) (*model.Page[model.MemoryEntry], error) {
	page = page.normalize()

	total, err := s.memories.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/memory: counting: %w", err)
	}
	rows, err := s.memories.List(ctx, userID, page.listOptions())
	if err != nil {
		return nil, fmt.Errorf("service/memory: listing: %w", err)
	}

	entries := make([]model.MemoryEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, s.entry(&rows[i]))
	}
	result := model.NewPage(entries, total, page.Page, page.Size)
	return &result, nil
}

func (s *MemoryService) Get(ctx context.Context, userID, memoryID int64) (*model.MemoryEntry, error) {
	m, err := s.memories.GetByID(ctx, userID, memoryID)
	if err != nil {
		return nil, s.lookupError(err, memoryID)
	}
	e := s.entry(m)
	return &e, nil
}

// Create validates in and stores a new memory.
//
// The photo is written before the row. If the insert then fails the photo
// is removed again, so the store never keeps orphans of failed requests.
func (s *MemoryService) Create(ctx context.Context, userID int64, in MemoryInput) (*model.MemoryEntry, error) {
	if in.VillageID == nil {
		return nil, apperror.New(apperror.CodeBadRequest)
	}
	if _, ok := s.catalog.ByID(*in.VillageID); !ok {
		return nil, apperror.New(apperror.CodeVillageNotFound)
	}
	if in.Content == nil {
		return nil, apperror.ValidationFailed("content", "내용을 입력해주세요.")
	}
	content, err := checkContent(*in.Content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	visitDate := s.day.Date(now)
	if in.VisitDate != nil && strings.TrimSpace(*in.VisitDate) != "" {
		if visitDate, err = parseVisitDate(*in.VisitDate); err != nil {
			return nil, err
		}
	}

	m := &model.Memory{
		UserID:    userID,
		VillageID: *in.VillageID,
		Content:   content,
		VisitDate: visitDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Image != nil {
		if m.ImageKey, err = s.saveImage(ctx, in.Image); err != nil {
			return nil, err
		}
	}

	if err := s.memories.Create(ctx, m); err != nil {
		s.removeImage(ctx, m.ImageKey)
		return nil, fmt.Errorf("service/memory: creating: %w", err)
	}

	s.logger.Info("memory created",
		slog.Int64("userID", userID),
		slog.Int64("memoryID", m.ID),
		slog.Int64("villageID", m.VillageID),
	)
	e := s.entry(m)
	return &e, nil
}

// Update changes the supplied fields and always refreshes updatedAt.
// A new photo replaces the old one, which is deleted from the store once
// the row points at the new key.
func (s *MemoryService) Update(ctx context.Context, userID, memoryID int64, in MemoryInput) (*model.MemoryEntry, error) {
	m, err := s.memories.GetByID(ctx, userID, memoryID)
	if err != nil {
		return nil, s.lookupError(err, memoryID)
	}

	if in.Content != nil {
		if m.Content, err = checkContent(*in.Content); err != nil {
			return nil, err
		}
	}
	if in.VisitDate != nil && strings.TrimSpace(*in.VisitDate) != "" {
		if m.VisitDate, err = parseVisitDate(*in.VisitDate); err != nil {
			return nil, err
		}
	}

	oldKey := m.ImageKey
	if in.Image != nil {
		if m.ImageKey, err = s.saveImage(ctx, in.Image); err != nil {
			return nil, err
		}
	}
	m.UpdatedAt = s.now()

	if err := s.memories.Update(ctx, m); err != nil {
		if m.ImageKey != oldKey {
			s.removeImage(ctx, m.ImageKey)
		}
		if apperror.Is(err, apperror.CodeMemoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/memory: updating %d: %w", memoryID, err)
	}
	if m.ImageKey != oldKey {
		s.removeImage(ctx, oldKey)
	}

	s.logger.Info("memory updated",
		slog.Int64("userID", userID),
		slog.Int64("memoryID", memoryID),
	)
	e := s.entry(m)
	return &e, nil
}

func (s *MemoryService) Delete(ctx context.Context, userID, memoryID int64) error {
	m, err := s.memories.GetByID(ctx, userID, memoryID)
	if err != nil {
		return s.lookupError(err, memoryID)
	}
	if err := s.memories.Delete(ctx, userID, memoryID); err != nil {
		if apperror.Is(err, apperror.CodeMemoryNotFound) {
			return err
		}
		return fmt.Errorf("service/memory: deleting %d: %w", memoryID, err)
	}
	s.removeImage(ctx, m.ImageKey)

	s.logger.Info("memory deleted",
		slog.Int64("userID", userID),
		slog.Int64("memoryID", memoryID),
	)
	return nil
}

// checkContent validates content and returns it unchanged. It is plain
// text; escaping for display is up to the client.
func checkContent(content string) (string, error) {
	n := utf8.RuneCountInString(content)
	switch {
	case strings.TrimSpace(content) == "":
		return "", apperror.ValidationFailed("content", "내용을 입력해주세요.")
	case n > MaxMemoryLength:
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("내용은 %d자 이하여야 합니다.", MaxMemoryLength))
	}
	return content, nil
}

func parseVisitDate(raw string) (string, error) {
	t, err := time.Parse(model.VisitDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", apperror.ValidationFailed("visitDate", "방문 날짜는 YYYY-MM-DD 형식이어야 합니다.")
	}
	return t.Format(model.VisitDateLayout), nil
}

func (s *MemoryService) saveImage(ctx context.Context, img *ImageUpload) (string, error) {
	key, err := s.images.Save(ctx, img.Filename, img.Body)
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, storage.ErrUnsupportedType):
		return "", apperror.ValidationFailed("image", "jpg, jpeg, png, gif, webp 이미지만 업로드할 수 있습니다.")
	case errors.Is(err, storage.ErrTooLarge):
		return "", apperror.ValidationFailed("image", "이미지는 5MB 이하여야 합니다.")
	default:
		return "", fmt.Errorf("service/memory: saving image: %w", err)
	}
}

// removeImage deletes a stored photo. Failure leaves an orphan file but
// never fails the request that triggered it.
func (s *MemoryService) removeImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete memory image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MemoryService) lookupError(err error, memoryID int64) error {
	if apperror.Is(err, apperror.CodeMemoryNotFound) {
		return err
	}
	return fmt.Errorf("service/memory: getting %d: %w", memoryID, err)
}

func (s *MemoryService) entry(m *model.Memory) model.MemoryEntry {
	e := model.MemoryEntry{
		MemoryID:  m.ID,
		VillageID: m.VillageID,
		Content:   m.Content,
		VisitDate: m.VisitDate,
		ImageURL:  s.images.URL(m.ImageKey),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if v, ok := s.catalog.ByID(m.VillageID); ok {
		e.VillageName = v.Name
		e.SidoName = v.SidoName
		e.SigunguName = v.SigunguName
		e.Address = v.Address
	}
	return e
}
