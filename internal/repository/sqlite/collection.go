package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
)

var _ repository.CollectionRepository = (*CollectionDB)(nil)

// CollectionDB stores the per-user set of collected villages.
type CollectionDB struct {
	conn *sql.DB
}

// Create inserts c and fills in its ID. The UNIQUE (user_id, village_id)
// constraint turns a duplicate into ALREADY_COLLECTED.
func (c *CollectionDB) Create(ctx context.Context, col *model.Collection) error {
	res, err := c.conn.ExecContext(ctx,
		`INSERT INTO collections (user_id, village_id, collected_at) VALUES (?, ?, ?)`,
		col.UserID, col.VillageID, toMillis(col.CollectedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "collections.") {
			return apperror.New(apperror.CodeAlreadyCollected)
		}
		return fmt.Errorf("sqlite: inserting collection (user=%d village=%d): %w", col.UserID, col.VillageID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new collection id: %w", err)
	}
	col.ID = id
	col.CollectedAt = fromMillis(toMillis(col.CollectedAt))
	return nil
}

// Get returns the user's entry for a village, or COLLECTION_NOT_FOUND.
func (c *CollectionDB) Get(ctx context.Context, userID, villageID int64) (*model.Collection, error) {
	var (
		col         model.Collection
		collectedAt int64
	)
	err := c.conn.QueryRowContext(ctx,
		`SELECT id, user_id, village_id, collected_at FROM collections
		 WHERE user_id = ? AND village_id = ?`,
		userID, villageID,
	).Scan(&col.ID, &col.UserID, &col.VillageID, &collectedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.CodeCollectionNotFound)
		}
		return nil, fmt.Errorf("sqlite: getting collection (user=%d village=%d): %w", userID, villageID, err)
	}
	col.CollectedAt = fromMillis(collectedAt)
	return &col, nil
}

// List returns one page of the user's collection in insertion order.
func (c *CollectionDB) List(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Collection, error) {
	limit, offset := clampList(opts)
	return c.query(ctx,
		`SELECT id, user_id, village_id, collected_at FROM collections
		 WHERE user_id = ? ORDER BY id ASC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
}

// ListAll returns the whole collection; used for region statistics.
func (c *CollectionDB) ListAll(ctx context.Context, userID int64) ([]model.Collection, error) {
	return c.query(ctx,
		`SELECT id, user_id, village_id, collected_at FROM collections
		 WHERE user_id = ? ORDER BY id ASC`,
		userID,
	)
}

func (c *CollectionDB) Count(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := c.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting collections of user %d: %w", userID, err)
	}
	return n, nil
}

// Delete removes an entry owned by userID. A foreign or unknown id is
// COLLECTION_NOT_FOUND either way.
func (c *CollectionDB) Delete(ctx context.Context, userID, collectionID int64) error {
	res, err := c.conn.ExecContext(ctx,
		`DELETE FROM collections WHERE id = ? AND user_id = ?`,
		collectionID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting collection %d: %w", collectionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.New(apperror.CodeCollectionNotFound)
	}
	return nil
}

func (c *CollectionDB) query(ctx context.Context, query string, args ...any) ([]model.Collection, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing collections: %w", err)
	}
	defer rows.Close()

	cols := make([]model.Collection, 0)
	for rows.Next() {
		var (
			col         model.Collection
			collectedAt int64
		)
		if err := rows.Scan(&col.ID, &col.UserID, &col.VillageID, &collectedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning collection: %w", err)
		}
		col.CollectedAt = fromMillis(collectedAt)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating collections: %w", err)
	}
	return cols, nil
}
