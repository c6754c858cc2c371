package sqliterepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jrsteele09/go-admin-session/credentials"
	_ "modernc.org/sqlite"
)

var _ credentials.Store = (*Repo)(nil)

const upsertSQL = `INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

// Repo stores credentials in a key/value table of a local SQLite database.
// Both tokens are written in one transaction.
type Repo struct {
	db   *sql.DB
	keys credentials.Keys
	own  bool
}

// Open opens (or creates) the database file at path and applies migrations.
func Open(ctx context.Context, path string, keys credentials.Keys) (*Repo, error) {
	if path == "" {
		return nil, fmt.Errorf("[sqliterepo Open] path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[sqliterepo Open] %w", err)
	}
	// SQLite allows a single writer; serialising connections avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	r, err := New(ctx, db, keys)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.own = true
	return r, nil
}

// New wraps an existing database handle and applies migrations.
func New(ctx context.Context, db *sql.DB, keys credentials.Keys) (*Repo, error) {
	if db == nil {
		return nil, fmt.Errorf("[sqliterepo New] db is required")
	}
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}
	return &Repo{db: db, keys: keys}, nil
}

// Close closes the database if Open created it.
func (r *Repo) Close() error {
	if !r.own {
		return nil
	}
	return r.db.Close()
}

func (r *Repo) Get(ctx context.Context) (credentials.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM credentials WHERE key IN (?, ?)`, r.keys.Access, r.keys.Refresh)
	if err != nil {
		return credentials.Record{}, fmt.Errorf("[sqliterepo Get] %w", err)
	}
	defer rows.Close()

	var rec credentials.Record
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return credentials.Record{}, fmt.Errorf("[sqliterepo Get] scan: %w", err)
		}
		switch key {
		case r.keys.Access:
			rec.AccessToken = value
		case r.keys.Refresh:
			rec.RefreshToken = value
		}
	}
	if err := rows.Err(); err != nil {
		return credentials.Record{}, fmt.Errorf("[sqliterepo Get] %w", err)
	}
	return rec, nil
}

func (r *Repo) Set(ctx context.Context, accessToken, refreshToken string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := put(ctx, tx, r.keys.Access, accessToken); err != nil {
			return err
		}
		return put(ctx, tx, r.keys.Refresh, refreshToken)
	})
}

func (r *Repo) SetAccessToken(ctx context.Context, accessToken string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return put(ctx, tx, r.keys.Access, accessToken)
	})
}

func (r *Repo) Clear(ctx context.Context) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (?, ?)`, r.keys.Access, r.keys.Refresh)
		return err
	})
}

func (r *Repo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[sqliterepo] begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("[sqliterepo] %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[sqliterepo] commit: %w", err)
	}
	return nil
}

func put(ctx context.Context, tx *sql.Tx, key, value string) error {
	if value == "" {
		_, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key)
		return err
	}
	_, err := tx.ExecContext(ctx, upsertSQL, key, value)
	return err
}
