package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T, tokens ...string) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	db := newDB(mock)
	if len(tokens) > 0 {
		next := 0
		db.newToken = func() string {
			tok := tokens[next%len(tokens)]
			next++
			return tok
		}
	}
	return db, mock
}

var (
	existsSQL = regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM subscribers WHERE email = $1)")
	insertSQL = regexp.QuoteMeta("INSERT INTO subscribers (email, unsubscribe_token) VALUES ($1, $2)")
	findSQL   = regexp.QuoteMeta("SELECT id, email, unsubscribe_token, created_at FROM subscribers WHERE unsubscribe_token = $1")
	deleteSQL = regexp.QuoteMeta("DELETE FROM subscribers WHERE unsubscribe_token = $1")
)

func TestExists(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(existsSQL).
		WithArgs("test@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(existsSQL).
		WithArgs("new@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := db.Exists(ctx, "test@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Exists(ctx, "new@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_ReturnsGeneratedToken(t *testing.T) {
	db, mock := newMockDB(t, "tok-1")

	mock.ExpectExec(insertSQL).
		WithArgs("test@example.com", "tok-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	token, err := db.Insert(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DefaultTokenIsRandom(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(insertSQL).
		WithArgs("a@example.com", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insertSQL).
		WithArgs("b@example.com", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	t1, err := db.Insert(context.Background(), "a@example.com")
	require.NoError(t, err)
	t2, err := db.Insert(context.Background(), "b@example.com")
	require.NoError(t, err)

	assert.Len(t, t1, 36)
	assert.NotEqual(t, t1, t2)
}

func TestInsert_DuplicateEmailMapsToConflict(t *testing.T) {
	db, mock := newMockDB(t, "tok-1")

	mock.ExpectExec(insertSQL).
		WithArgs("test@example.com", "tok-1").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "subscribers_email_key"})

	_, err := db.Insert(context.Background(), "test@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_TokenCollisionRetriesWithNewToken(t *testing.T) {
	db, mock := newMockDB(t, "taken", "fresh")

	mock.ExpectExec(insertSQL).
		WithArgs("test@example.com", "taken").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tokenConstraint})
	mock.ExpectExec(insertSQL).
		WithArgs("test@example.com", "fresh").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	token, err := db.Insert(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_GivesUpAfterRepeatedCollisions(t *testing.T) {
	db, mock := newMockDB(t, "taken")

	for i := 0; i < maxTokenAttempts; i++ {
		mock.ExpectExec(insertSQL).
			WithArgs("test@example.com", "taken").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tokenConstraint})
	}

	_, err := db.Insert(context.Background(), "test@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_StoreErrorIsWrapped(t *testing.T) {
	db, mock := newMockDB(t, "tok-1")
	boom := errors.New("connection reset")

	mock.ExpectExec(insertSQL).
		WithArgs("test@example.com", "tok-1").
		WillReturnError(boom)

	_, err := db.Insert(context.Background(), "test@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "database.Insert")
}

func TestFindByToken(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(findSQL).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "unsubscribe_token", "created_at"}).
			AddRow(int64(7), "test@example.com", "tok-1", created))

	s, err := db.FindByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.ID)
	assert.Equal(t, "test@example.com", s.Email)
	assert.Equal(t, "tok-1", s.UnsubscribeToken)
	assert.Equal(t, created, s.CreatedAt)
}

func TestFindByToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(findSQL).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := db.FindByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestDeleteByToken(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"row removed", 1, true},
		{"nothing to remove", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)

			mock.ExpectExec(deleteSQL).
				WithArgs("tok-1").
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			removed, err := db.DeleteByToken(context.Background(), "tok-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, removed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteByToken_Error(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(deleteSQL).
		WithArgs("tok-1").
		WillReturnError(fmt.Errorf("timeout"))

	_, err := db.DeleteByToken(context.Background(), "tok-1")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateURL(t *testing.T) {
	got, err := migrateURL("postgres://u:p@localhost:5432/newsletter?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@localhost:5432/newsletter?sslmode=disable", got)

	got, err = migrateURL("postgresql://u@db/app")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u@db/app", got)

	_, err = migrateURL("mysql://u@db/app")
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_create_subscribers.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), tokenConstraint)
	assert.Contains(t, string(up), "subscribers_email_key")

	_, err = migrationsFS.ReadFile("migrations/000001_create_subscribers.down.sql")
	assert.NoError(t, err)
}
