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

var _ repository.MemoryRepository = (*MemoryDB)(nil)

// MemoryDB stores visit journal entries.
//
// Every read and write is scoped by user_id in the WHERE clause, so another
// user's memory is indistinguishable from a missing one.
type MemoryDB struct {
	conn *sql.DB
}

const memoryColumns = `id, user_id, village_id, content, visit_date, image_key, created_at, updated_at`

// Create inserts m and fills in its ID. CreatedAt and UpdatedAt are taken
// from m as set by the service (which owns the clock).
func (r *MemoryDB) Create(ctx context.Context, m *model.Memory) error {
	res, err := r.conn.ExecContext(ctx,
		`INSERT INTO memories (user_id, village_id, content, visit_date, image_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.UserID,
		m.VillageID,
		m.Content,
		m.VisitDate,
		m.ImageKey,
		toMillis(m.CreatedAt),
		toMillis(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting memory for user %d: %w", m.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new memory id: %w", err)
	}
	m.ID = id
	m.CreatedAt = fromMillis(toMillis(m.CreatedAt))
	m.UpdatedAt = fromMillis(toMillis(m.UpdatedAt))
	return nil
}

func (r *MemoryDB) GetByID(ctx context.Context, userID, memoryID int64) (*model.Memory, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ? AND user_id = ?`,
		memoryID, userID,
	)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.CodeMemoryNotFound)
		}
		return nil, fmt.Errorf("sqlite: getting memory %d: %w", memoryID, err)
	}
	return m, nil
}

// List returns one page of the user's memories in insertion order.
func (r *MemoryDB) List(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Memory, error) {
	limit, offset := clampList(opts)

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE user_id = ? ORDER BY id ASC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memories of user %d: %w", userID, err)
	}
	defer rows.Close()

	memories := make([]model.Memory, 0, limit)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning memory: %w", err)
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memories: %w", err)
	}
	return memories, nil
}

func (r *MemoryDB) Count(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting memories of user %d: %w", userID, err)
	}
	return n, nil
}

// Update writes content, visit_date, image_key and updated_at.
func (r *MemoryDB) Update(ctx context.Context, m *model.Memory) error {
	res, err := r.conn.ExecContext(ctx,
		`UPDATE memories SET content = ?, visit_date = ?, image_key = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		m.Content,
		m.VisitDate,
		m.ImageKey,
		toMillis(m.UpdatedAt),
		m.ID,
		m.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating memory %d: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.New(apperror.CodeMemoryNotFound)
	}
	m.UpdatedAt = fromMillis(toMillis(m.UpdatedAt))
	return nil
}

func (r *MemoryDB) Delete(ctx context.Context, userID, memoryID int64) error {
	res, err := r.conn.ExecContext(ctx,
		`DELETE FROM memories WHERE id = ? AND user_id = ?`,
		memoryID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting memory %d: %w", memoryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.New(apperror.CodeMemoryNotFound)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(s rowScanner) (*model.Memory, error) {
	var (
		m         model.Memory
		createdAt int64
		updatedAt int64
	)
	err := s.Scan(
		&m.ID,
		&m.UserID,
		&m.VillageID,
		&m.Content,
		&m.VisitDate,
		&m.ImageKey,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}
