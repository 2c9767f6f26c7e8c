package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores accounts in the users table.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, username, email, password_hash, github_id, created_at, updated_at`

// Create inserts a new user and fills in ID, CreatedAt and UpdatedAt.
//
// Uniqueness is left to the schema: the UNIQUE constraints on username and
// email are the only check that holds under concurrent signups. The failed
// column decides which error code the caller sees.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()

	res, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.GitHubID,
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users.username"):
			return apperror.New(apperror.CodeUsernameExists)
		case isUniqueViolation(err, "users.email"):
			return apperror.New(apperror.CodeEmailExists)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = fromMillis(toMillis(now))
	user.UpdatedAt = user.CreatedAt
	return nil
}

// GetByID retrieves a user by ID. Returns USER_NOT_FOUND if absent.
func (u *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, fmt.Sprintf("id %d", id))
}

// GetByUsername is an exact, case-sensitive match.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row, fmt.Sprintf("username %q", username))
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row, fmt.Sprintf("email %q", email))
}

func (u *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID)
	return scanUser(row, fmt.Sprintf("github_id %d", githubID))
}

// UpdateEmail changes the user's email and returns the updated row.
// Returns EMAIL_ALREADY_EXISTS if another account already uses it.
func (u *UserDB) UpdateEmail(ctx context.Context, id int64, email string) (*model.User, error) {
	res, err := u.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		email, toMillis(time.Now()), id,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return nil, apperror.New(apperror.CodeEmailExists)
		}
		return nil, fmt.Errorf("sqlite: updating email of user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.New(apperror.CodeUserNotFound)
	}
	return u.GetByID(ctx, id)
}

// scanUser reads one users row. what describes the lookup for error messages.
func scanUser(row *sql.Row, what string) (*model.User, error) {
	var (
		user      model.User
		githubID  sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&githubID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.CodeUserNotFound)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", what, err)
	}

	if githubID.Valid {
		id := githubID.Int64
		user.GitHubID = &id
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}
