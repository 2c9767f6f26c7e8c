package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
)

// UserService serves the "my page" profile.
type UserService struct {
	users       repository.UserRepository
	collections repository.CollectionRepository
	memories    repository.MemoryRepository
	logger      *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	collections repository.CollectionRepository,
	memories repository.MemoryRepository,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:       users,
		collections: collections,
		memories:    memories,
		logger:      logger,
	}
}

// GetMe returns the profile with counts computed now, not cached.
func (s *UserService) GetMe(ctx context.Context, userID int64) (*model.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperror.Is(err, apperror.CodeUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/user: getting %d: %w", userID, err)
	}
	return s.profile(ctx, user)
}

// UpdateMe changes the email. The token carries only the user ID, so the
// next request of the same session already sees the new address.
func (s *UserService) UpdateMe(ctx context.Context, userID int64, email string) (*model.UserProfile, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateEmail(ctx, userID, email)
	if err != nil {
		switch apperror.CodeOf(err) {
		case apperror.CodeEmailExists, apperror.CodeUserNotFound:
			return nil, err
		}
		return nil, fmt.Errorf("service/user: updating email of %d: %w", userID, err)
	}

	s.logger.Info("user profile updated", slog.Int64("userID", userID))
	return s.profile(ctx, user)
}

func (s *UserService) profile(ctx context.Context, user *model.User) (*model.UserProfile, error) {
	collections, err := s.collections.Count(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: counting collections: %w", err)
	}
	memories, err := s.memories.Count(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: counting memories: %w", err)
	}
	return &model.UserProfile{
		UserID:          user.ID,
		Username:        user.Username,
		Email:           user.Email,
		CollectionCount: int(collections),
		MemoryCount:     int(memories),
		CreatedAt:       user.CreatedAt,
	}, nil
}
