//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mock_store_test.go -package=account
package account

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Store persists account records keyed by email.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	FindByEmail(ctx context.Context, email string) (Record, error)
	Update(ctx context.Context, email string, upd ProfileUpdate) (Record, error)
	Delete(ctx context.Context, email string) error
}

// DBTX is the subset of pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	phone         TEXT NOT NULL,
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`

const selectColumns = `id, name, email, phone, role, password_hash, created_at`

// PostgresStore keeps accounts in the users table.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a store on top of db, usually a *pgxpool.Pool.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse connection string")
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return pool, nil
}

// EnsureSchema creates the users table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return errors.Wrap(err, "create users table")
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, name, email, phone, role, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Name, normalizeEmail(rec.Email), rec.Phone, rec.Role, rec.PasswordHash, rec.CreatedAt)
	return translateError(err, "insert user")
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM users WHERE email = $1`,
		normalizeEmail(email))
	rec, err := scanRecord(row)
	return rec, translateError(err, "select user")
}

func (s *PostgresStore) Update(ctx context.Context, email string, upd ProfileUpdate) (Record, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE users SET name = $1, email = $2, role = $3 WHERE email = $4
		 RETURNING `+selectColumns,
		upd.Name, normalizeEmail(upd.Email), upd.Role, normalizeEmail(email))
	rec, err := scanRecord(row)
	return rec, translateError(err, "update user")
}

func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE email = $1`, normalizeEmail(email))
	if err != nil {
		return translateError(err, "delete user")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		createdAt time.Time
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &rec.Role, &rec.PasswordHash, &createdAt)
	rec.CreatedAt = createdAt.UTC()
	return rec, err
}

// translateError maps driver errors onto the package sentinels.
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return errors.Wrap(err, op)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
