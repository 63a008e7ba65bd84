package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"direct-chat/internal/domain"
)

// UserRepository implements domain.UserRepository for PostgreSQL
type UserRepository struct {
	db                *sql.DB
	createStmt        *sql.Stmt
	getByIDStmt       *sql.Stmt
	getByUsernameStmt *sql.Stmt
	getByEmailStmt    *sql.Stmt
	listOthersStmt    *sql.Stmt
	updateAvatarStmt  *sql.Stmt
}

// NewUserRepository creates a new UserRepository with prepared statements.
// Returns an error if statement preparation fails.
func NewUserRepository(db *sql.DB) (*UserRepository, error) {
	repo := &UserRepository{db: db}

	var err error
	repo.createStmt, err = db.Prepare(`
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}

	repo.getByIDStmt, err = db.Prepare(`
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE id = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByID statement: %w", err)
	}

	repo.getByUsernameStmt, err = db.Prepare(`
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE username = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByUsername statement: %w", err)
	}

	repo.getByEmailStmt, err = db.Prepare(`
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE email = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByEmail statement: %w", err)
	}

	repo.listOthersStmt, err = db.Prepare(`
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE id != $1
		ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare listOthers statement: %w", err)
	}

	repo.updateAvatarStmt, err = db.Prepare(`
		UPDATE users SET avatar_url = $1 WHERE id = $2
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare updateAvatar statement: %w", err)
	}

	return repo, nil
}

// Create inserts a new user into the database
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.createStmt.QueryRowContext(ctx,
		user.Username,
		user.Email,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err, "users_username_key") {
			return domain.ErrUsernameExists
		}
		if IsUniqueViolation(err, "users_email_key") {
			return domain.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(r.getByIDStmt.QueryRowContext(ctx, id))
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanOne(r.getByUsernameStmt.QueryRowContext(ctx, username))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanOne(r.getByEmailStmt.QueryRowContext(ctx, email))
}

// ListOthers retrieves every user except the given one, ordered by username
func (r *UserRepository) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	rows, err := r.listOthersStmt.QueryContext(ctx, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.AvatarURL,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateAvatar sets the avatar URL for a user
func (r *UserRepository) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	result, err := r.updateAvatarStmt.ExecContext(ctx, avatarURL, id)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
