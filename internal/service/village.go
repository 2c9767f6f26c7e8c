package service

import (
	"context"
	"fmt"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
	"github.com/sakif/village-gacha/internal/village"
)

// VillageService serves the read-only catalog.
type VillageService struct {
	catalog     *village.Catalog
	collections repository.CollectionRepository
}

func NewVillageService(catalog *village.Catalog, collections repository.CollectionRepository) *VillageService {
	return &VillageService{catalog: catalog, collections: collections}
}

// List returns one page of the filtered catalog in file order.
func (s *VillageService) List(_ context.Context, filter model.VillageFilter, page PageRequest) model.Page[model.Village] {
	page = page.normalize()
	return model.Paginate(s.catalog.Filter(filter), page.Page, page.Size)
}

// Get returns a village. userID 0 means an anonymous caller, who always
// sees isCollected=false.
func (s *VillageService) Get(ctx context.Context, userID, villageID int64) (*model.VillageDetail, error) {
	v, ok := s.catalog.ByID(villageID)
	if !ok {
		return nil, apperror.New(apperror.CodeVillageNotFound)
	}

	detail := &model.VillageDetail{Village: v}
	if userID == 0 {
		return detail, nil
	}

	col, err := s.collections.Get(ctx, userID, villageID)
	switch {
	case err == nil:
		detail.IsCollected = true
		detail.CollectedAt = &col.CollectedAt
	case !apperror.Is(err, apperror.CodeCollectionNotFound):
		return nil, fmt.Errorf("service/village: checking collection: %w", err)
	}
	return detail, nil
}
