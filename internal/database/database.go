package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellingtonag/newsletter-node/internal/models"
)

var (
	ErrEmailExists   = errors.New("email already exists")
	ErrTokenNotFound = errors.New("token not found")
)

const (
	uniqueViolation = "23505"
	tokenConstraint = "subscribers_unsubscribe_token_key"

	// A token collision is a random event, so a couple of fresh draws
	// is enough before giving up.
	maxTokenAttempts = 3
)

// pool is the subset of *pgxpool.Pool the store relies on.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type DB struct {
	pool     pool
	newToken func() string
}

func New(ctx context.Context, dsn string) (*DB, error) {
	const op = "database.New"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return newDB(p), nil
}

func newDB(p pool) *DB {
	return &DB{pool: p, newToken: uuid.NewString}
}

func (db *DB) Exists(ctx context.Context, email string) (bool, error) {
	const op = "database.Exists"

	var exists bool
	err := db.pool.QueryRow(
		ctx,
		"SELECT EXISTS (SELECT 1 FROM subscribers WHERE email = $1)",
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// Insert stores email with a freshly generated unsubscribe token and
// returns the token. The unique constraint on email is the authority
// on duplicates, so concurrent inserts of one address yield exactly one
// row and ErrEmailExists for the rest.
func (db *DB) Insert(ctx context.Context, email string) (string, error) {
	const op = "database.Insert"

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token := db.newToken()

		_, err := db.pool.Exec(
			ctx,
			"INSERT INTO subscribers (email, unsubscribe_token) VALUES ($1, $2)",
			email,
			token,
		)
		if err == nil {
			return token, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == tokenConstraint {
				continue
			}
			return "", fmt.Errorf("%s: %w", op, ErrEmailExists)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return "", fmt.Errorf("%s: no unique token after %d attempts", op, maxTokenAttempts)
}

func (db *DB) FindByToken(ctx context.Context, token string) (models.Subscriber, error) {
	const op = "database.FindByToken"

	var s models.Subscriber
	err := db.pool.QueryRow(
		ctx,
		"SELECT id, email, unsubscribe_token, created_at FROM subscribers "+
			"WHERE unsubscribe_token = $1",
		token,
	).Scan(&s.ID, &s.Email, &s.UnsubscribeToken, &s.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.Subscriber{}, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}
	if err != nil {
		return models.Subscriber{}, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// DeleteByToken reports whether a row was removed.
func (db *DB) DeleteByToken(ctx context.Context, token string) (bool, error) {
	const op = "database.DeleteByToken"

	result, err := db.pool.Exec(
		ctx,
		"DELETE FROM subscribers WHERE unsubscribe_token = $1",
		token,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return result.RowsAffected() > 0, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() {
	db.pool.Close()
}
