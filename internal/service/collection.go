package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/metrics"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
	"github.com/sakif/village-gacha/internal/village"
)

// CollectionService manages the villages a user has kept.
type CollectionService struct {
	collections repository.CollectionRepository
	catalog     *village.Catalog
	metrics     metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

func NewCollectionService(
	collections repository.CollectionRepository,
	catalog *village.Catalog,
	rec metrics.Recorder,
	logger *slog.Logger,
) *CollectionService {
	return &CollectionService{
		collections: collections,
		catalog:     catalog,
		metrics:     rec,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns one page of the user's collection in the order it was built.
func (s *CollectionService) List(ctx context.Context, userID int64, page PageRequest) (*model.Page[model.CollectionEntry], error) {
	page = page.normalize()

	total, err := s.collections.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/collection: counting: %w", err)
	}
	rows, err := s.collections.List(ctx, userID, page.listOptions())
	if err != nil {
		return nil, fmt.Errorf("service/collection: listing: %w", err)
	}

	entries := make([]model.CollectionEntry, 0, len(rows))
	for _, c := range rows {
		entries = append(entries, s.entry(c))
	}
	result := model.NewPage(entries, total, page.Page, page.Size)
	return &result, nil
}

// Add puts a village in the user's collection.
//
// ALREADY_COLLECTED is checked before the village exists: a pair that is
// already stored is reported as such even if the catalog has since lost
// the village.
func (s *CollectionService) Add(ctx context.Context, userID, villageID int64) (*model.CollectionEntry, error) {
	if villageID <= 0 {
		return nil, apperror.ValidationFailed("villageId", "여행지 ID가 필요합니다.")
	}

	_, err := s.collections.Get(ctx, userID, villageID)
	switch {
	case err == nil:
		return nil, apperror.New(apperror.CodeAlreadyCollected)
	case !apperror.Is(err, apperror.CodeCollectionNotFound):
		return nil, fmt.Errorf("service/collection: checking existing entry: %w", err)
	}

	if _, ok := s.catalog.ByID(villageID); !ok {
		return nil, apperror.New(apperror.CodeVillageNotFound)
	}

	c := &model.Collection{UserID: userID, VillageID: villageID, CollectedAt: s.now()}
	if err := s.collections.Create(ctx, c); err != nil {
		if apperror.Is(err, apperror.CodeAlreadyCollected) {
			return nil, err
		}
		return nil, fmt.Errorf("service/collection: creating entry: %w", err)
	}

	s.metrics.RecordCollectionAdd()
	s.logger.Info("village collected",
		slog.Int64("userID", userID),
		slog.Int64("villageID", villageID),
		slog.Int64("collectionID", c.ID),
	)
	entry := s.entry(*c)
	return &entry, nil
}

// Delete removes an entry. Unknown and foreign IDs both give
// COLLECTION_NOT_FOUND.
func (s *CollectionService) Delete(ctx context.Context, userID, collectionID int64) error {
	if err := s.collections.Delete(ctx, userID, collectionID); err != nil {
		if apperror.Is(err, apperror.CodeCollectionNotFound) {
			return err
		}
		return fmt.Errorf("service/collection: deleting %d: %w", collectionID, err)
	}
	s.logger.Info("collection entry deleted",
		slog.Int64("userID", userID),
		slog.Int64("collectionID", collectionID),
	)
	return nil
}

// Stats counts the user's collection per region (sidoName). Entries whose
// village has left the catalog are counted in the total only.
func (s *CollectionService) Stats(ctx context.Context, userID int64) (*model.CollectionStats, error) {
	rows, err := s.collections.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/collection: listing all: %w", err)
	}

	stats := &model.CollectionStats{TotalCount: len(rows), RegionStats: make(map[string]int)}
	for _, c := range rows {
		if v, ok := s.catalog.ByID(c.VillageID); ok && v.SidoName != "" {
			stats.RegionStats[v.SidoName]++
		}
	}
	return stats, nil
}

// entry joins a collection row with its village. A village missing from
// the catalog leaves the village fields empty rather than dropping the row,
// so page sizes and totals stay consistent.
func (s *CollectionService) entry(c model.Collection) model.CollectionEntry {
	e := model.CollectionEntry{
		CollectionID: c.ID,
		VillageID:    c.VillageID,
		CollectedAt:  c.CollectedAt,
	}
	v, ok := s.catalog.ByID(c.VillageID)
	if !ok {
		s.logger.Warn("collected village missing from catalog",
			slog.Int64("collectionID", c.ID),
			slog.Int64("villageID", c.VillageID),
		)
		return e
	}
	e.VillageName = v.Name
	e.SidoName = v.SidoName
	e.SigunguName = v.SigunguName
	e.Address = v.Address
	e.ProgramName = v.ProgramName
	e.ImageURL = v.ImageURL
	return e
}
