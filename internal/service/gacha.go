package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/metrics"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
	"github.com/sakif/village-gacha/internal/village"
)

// DefaultDailyDrawLimit is one draw per user per day.
const DefaultDailyDrawLimit = 1

// GachaService draws random villages under a per-day limit.
//
// STATE PER USER PER DAY:
//
//	Eligible --draw--> Drawn --(next day in the DayPolicy zone)--> Eligible
//
// There is no stored flag: the draw history is the only source of truth,
// and a day's state is "count of draws inside DayPolicy.Bounds(now)".
type GachaService struct {
	draws       repository.GachaRepository
	collections repository.CollectionRepository
	catalog     *village.Catalog
	day         DayPolicy
	limit       int
	metrics     metrics.Recorder
	logger      *slog.Logger

	now  func() time.Time
	intn func(n int) int
}

// GachaOption customises a GachaService. Tests pin the clock and the RNG.
type GachaOption func(*GachaService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GachaOption {
	return func(s *GachaService) { s.now = now }
}

// WithRand replaces the uniform picker; intn must return a value in [0, n).
func WithRand(intn func(n int) int) GachaOption {
	return func(s *GachaService) { s.intn = intn }
}

// WithDailyLimit overrides DefaultDailyDrawLimit. Values below 1 are ignored.
func WithDailyLimit(limit int) GachaOption {
	return func(s *GachaService) {
		if limit >= 1 {
			s.limit = limit
		}
	}
}

func NewGachaService(
	draws repository.GachaRepository,
	collections repository.CollectionRepository,
	catalog *village.Catalog,
	day DayPolicy,
	rec metrics.Recorder,
	logger *slog.Logger,
	opts ...GachaOption,
) *GachaService {
	s := &GachaService{
		draws:       draws,
		collections: collections,
		catalog:     catalog,
		day:         day,
		limit:       DefaultDailyDrawLimit,
		metrics:     rec,
		logger:      logger,
		now:         time.Now,
		intn:        rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status reports today's draws for the user.
func (s *GachaService) Status(ctx context.Context, userID int64) (*model.GachaStatus, error) {
	start, end := s.day.Bounds(s.now())
	today, err := s.draws.ListBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("service/gacha: listing today's draws: %w", err)
	}

	status := &model.GachaStatus{
		CanDraw:        len(today) < s.limit,
		RemainingCount: max(s.limit-len(today), 0),
		TodayDrawCount: len(today),
	}
	if n := len(today); n > 0 {
		last := today[n-1].DrawnAt.In(s.day.Location())
		status.LastDrawTime = &last
	}
	return status, nil
}

// Draw picks a village uniformly from the filtered catalog and records the
// draw.
//
// ORDER OF CHECKS:
//  1. daily limit (a user who already drew sees DAILY_LIMIT_EXCEEDED even
//     with a filter that matches nothing)
//  2. empty candidate set → NO_VILLAGES_AVAILABLE, nothing recorded
//  3. record the draw; the repository re-checks the limit inside the insert
//     transaction so two concurrent requests cannot both succeed
//
// isNew is true when the village is not yet in the user's collection.
func (s *GachaService) Draw(ctx context.Context, userID int64, filter model.VillageFilter) (*model.DrawResult, error) {
	now := s.now()
	start, end := s.day.Bounds(now)

	today, err := s.draws.ListBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("service/gacha: listing today's draws: %w", err)
	}
	if len(today) >= s.limit {
		s.logger.Warn("daily gacha limit exceeded",
			slog.Int64("userID", userID),
			slog.Int("todayCount", len(today)),
			slog.Int("limit", s.limit),
		)
		return nil, apperror.New(apperror.CodeDailyLimitExceeded)
	}

	picked, ok := village.Pick(s.catalog.Filter(filter), s.intn)
	if !ok {
		s.logger.Info("no village matches gacha filter",
			slog.Int64("userID", userID),
			slog.String("region", filter.Region),
			slog.String("programType", filter.ProgramType),
		)
		return nil, apperror.New(apperror.CodeNoVillagesAvailable)
	}

	isNew, err := s.isNew(ctx, userID, picked.ID)
	if err != nil {
		return nil, err
	}

	draw := &model.GachaDraw{UserID: userID, VillageID: picked.ID, DrawnAt: now}
	if err := s.draws.CreateIfUnderLimit(ctx, draw, start, end, s.limit); err != nil {
		if apperror.Is(err, apperror.CodeDailyLimitExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("service/gacha: recording draw: %w", err)
	}

	s.metrics.RecordDraw(isNew)
	s.logger.Info("gacha draw",
		slog.Int64("userID", userID),
		slog.Int64("villageID", picked.ID),
		slog.String("villageName", picked.Name),
		slog.Bool("isNew", isNew),
	)

	return &model.DrawResult{
		Village: picked,
		IsNew:   isNew,
		DrawnAt: draw.DrawnAt.In(s.day.Location()),
	}, nil
}

func (s *GachaService) isNew(ctx context.Context, userID, villageID int64) (bool, error) {
	_, err := s.collections.Get(ctx, userID, villageID)
	switch {
	case err == nil:
		return false, nil
	case apperror.Is(err, apperror.CodeCollectionNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("service/gacha: checking collection: %w", err)
	}
}
