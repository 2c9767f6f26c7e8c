package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
)

var _ repository.GachaRepository = (*GachaDB)(nil)

// GachaDB stores the draw history. Rows are append-only.
type GachaDB struct {
	conn *sql.DB
}

// CreateIfUnderLimit records a draw only if the user is still under the
// limit for the window [since, until).
//
// The COUNT and the INSERT run in the same transaction on the single pooled
// connection, so two concurrent draw requests from one user can never both
// see "0 draws today". d.ID is filled in on success.
func (g *GachaDB) CreateIfUnderLimit(ctx context.Context, d *model.GachaDraw, since, until time.Time, limit int) error {
	tx, err := g.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning draw transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gacha_draws
		 WHERE user_id = ? AND drawn_at >= ? AND drawn_at < ?`,
		d.UserID, toMillis(since), toMillis(until),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("sqlite: counting draws of user %d: %w", d.UserID, err)
	}
	if count >= limit {
		return apperror.New(apperror.CodeDailyLimitExceeded)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO gacha_draws (user_id, village_id, drawn_at) VALUES (?, ?, ?)`,
		d.UserID, d.VillageID, toMillis(d.DrawnAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting draw for user %d: %w", d.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new draw id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing draw: %w", err)
	}

	d.ID = id
	d.DrawnAt = fromMillis(toMillis(d.DrawnAt))
	return nil
}

// ListBetween returns the user's draws in [since, until), oldest first.
func (g *GachaDB) ListBetween(ctx context.Context, userID int64, since, until time.Time) ([]model.GachaDraw, error) {
	rows, err := g.conn.QueryContext(ctx,
		`SELECT id, user_id, village_id, drawn_at FROM gacha_draws
		 WHERE user_id = ? AND drawn_at >= ? AND drawn_at < ?
		 ORDER BY drawn_at ASC, id ASC`,
		userID, toMillis(since), toMillis(until),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing draws of user %d: %w", userID, err)
	}
	defer rows.Close()

	draws := make([]model.GachaDraw, 0)
	for rows.Next() {
		var (
			d       model.GachaDraw
			drawnAt int64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.VillageID, &drawnAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning draw: %w", err)
		}
		d.DrawnAt = fromMillis(drawnAt)
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating draws: %w", err)
	}
	return draws, nil
}
