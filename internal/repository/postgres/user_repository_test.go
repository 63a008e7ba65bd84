package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"direct-chat/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userColumns = "id, username, email, password_hash, COALESCE(avatar_url, ''), created_at"

// expectUserPrepares registers the prepared statements NewUserRepository
// creates, in order.
func expectUserPrepares(mock sqlmock.Sqlmock) {
	mock.ExpectPrepare(regexp.QuoteMeta(`
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`))
	for i := 0; i < 4; i++ {
		// getByID, getByUsername, getByEmail, listOthers share the column list
		mock.ExpectPrepare(regexp.QuoteMeta(userColumns))
	}
	mock.ExpectPrepare(regexp.QuoteMeta(`
		UPDATE users SET avatar_url = $1 WHERE id = $2
	`))
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	expectUserPrepares(mock)

	repo, err := NewUserRepository(db)
	require.NoError(t, err)

	return repo, mock, func() { db.Close() }
}

func TestNewUserRepository(t *testing.T) {
	t.Run("successful_creation", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		assert.NotNil(t, repo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails_when_prepare_fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO users`)).
			WillReturnError(errors.New("prepare failed"))

		repo, err := NewUserRepository(db)
		assert.Error(t, err)
		assert.Nil(t, repo)
	})
}

func TestUserRepository_Create(t *testing.T) {
	t.Run("assigns_id_and_created_at", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		createdAt := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs("alice", "alice@example.com", "hash").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow("user-1", createdAt))

		user := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
		err := repo.Create(context.Background(), user)

		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, createdAt, user.CreatedAt)
	})

	t.Run("duplicate_username", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

		err := repo.Create(context.Background(), &domain.User{Username: "alice"})
		assert.ErrorIs(t, err, domain.ErrUsernameExists)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

		err := repo.Create(context.Background(), &domain.User{Email: "alice@example.com"})
		assert.ErrorIs(t, err, domain.ErrEmailExists)
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(userColumns)).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "avatar_url", "created_at"}).
				AddRow("user-1", "alice", "alice@example.com", "hash", "http://media/avatar.png", time.Now()))

		user, err := repo.GetByID(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "http://media/avatar.png", user.AvatarURL)
	})

	t.Run("not_found", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(userColumns)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserRepository_ListOthers(t *testing.T) {
	repo, mock, cleanup := newUserRepo(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(userColumns)).
		WithArgs("me").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "avatar_url", "created_at"}).
			AddRow("user-2", "bob", "bob@example.com", "hash", "", time.Now()).
			AddRow("user-3", "carol", "carol@example.com", "hash", "", time.Now()))

	users, err := repo.ListOthers(context.Background(), "me")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username)
	assert.Equal(t, "carol", users[1].Username)
}

func TestUserRepository_UpdateAvatar(t *testing.T) {
	t.Run("updates_existing_user", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET avatar_url`)).
			WithArgs("http://media/new.png", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateAvatar(context.Background(), "user-1", "http://media/new.png")
		assert.NoError(t, err)
	})

	t.Run("unknown_user", func(t *testing.T) {
		repo, mock, cleanup := newUserRepo(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET avatar_url`)).
			WithArgs("http://media/new.png", "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateAvatar(context.Background(), "missing", "http://media/new.png")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}
