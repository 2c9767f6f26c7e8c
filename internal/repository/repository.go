// Package repository declares the storage interfaces the services depend on.
//
// Services never see *sql.DB. They receive these interfaces, so tests can run
// against an in-memory SQLite database and a future Postgres backend would be
// a new package, not a rewrite.
package repository

import (
	"context"
	"time"

	"github.com/sakif/village-gacha/internal/model"
)

// ListOptions is LIMIT/OFFSET pagination as the SQL layer sees it.
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// Create inserts u and fills in its ID and timestamps. Returns
	// USERNAME_ALREADY_EXISTS or EMAIL_ALREADY_EXISTS on a unique violation.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdateEmail(ctx context.Context, id int64, email string) (*model.User, error)
}

type GachaRepository interface {
	// CreateIfUnderLimit records d only when the user has fewer than limit
	// draws in [since, until). The count and the insert share one
	// transaction. Returns DAILY_LIMIT_EXCEEDED otherwise.
	CreateIfUnderLimit(ctx context.Context, d *model.GachaDraw, since, until time.Time, limit int) error
	// ListBetween returns the user's draws in [since, until), oldest first.
	ListBetween(ctx context.Context, userID int64, since, until time.Time) ([]model.GachaDraw, error)
}

type CollectionRepository interface {
	// Create returns ALREADY_COLLECTED when the (user, village) pair exists.
	Create(ctx context.Context, c *model.Collection) error
	Get(ctx context.Context, userID, villageID int64) (*model.Collection, error)
	List(ctx context.Context, userID int64, opts ListOptions) ([]model.Collection, error)
	ListAll(ctx context.Context, userID int64) ([]model.Collection, error)
	Count(ctx context.Context, userID int64) (int64, error)
	// Delete removes the row only if it belongs to userID.
	Delete(ctx context.Context, userID, collectionID int64) error
}

type MemoryRepository interface {
	Create(ctx context.Context, m *model.Memory) error
	// GetByID treats foreign rows exactly like missing rows.
	GetByID(ctx context.Context, userID, memoryID int64) (*model.Memory, error)
	List(ctx context.Context, userID int64, opts ListOptions) ([]model.Memory, error)
	Count(ctx context.Context, userID int64) (int64, error)
	Update(ctx context.Context, m *model.Memory) error
	Delete(ctx context.Context, userID, memoryID int64) error
}
