package postgresql

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository"
)

// TokenRepo backs the session token store with a table keyed by device
// profile and token name.
type TokenRepo struct {
	db      db.DB
	profile string
	now     func() time.Time
}

func NewTokenRepo(db db.DB, profile string) *TokenRepo {
	return &TokenRepo{db: db, profile: profile, now: time.Now}
}

func (r *TokenRepo) Get(ctx context.Context, key string) (string, error) {
	var row repository.Token
	err := r.db.Get(ctx, &row, `
        SELECT key, value, updated_at FROM tokens
        WHERE profile = $1 AND key = $2
    `, r.profile, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrObjectNotFound
		}
		return "", err
	}
	return row.Value, nil
}

// Set upserts all keys in one statement.
func (r *TokenRepo) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = values[k]
	}

	_, err := r.db.Exec(ctx, `
        INSERT INTO tokens (profile, key, value, updated_at)
        SELECT $1, t.key, t.value, $4
        FROM unnest($2::text[], $3::text[]) AS t(key, value)
        ON CONFLICT (profile, key) DO UPDATE
        SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `, r.profile, keys, vals, r.now().UTC())
	return err
}

func (r *TokenRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, "DELETE FROM tokens WHERE profile = $1 AND key = ANY($2)", r.profile, keys)
	return err
}
