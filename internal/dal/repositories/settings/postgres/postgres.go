package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/dijistore/storefront/internal/dal/postgres"
	"github.com/jackc/pgx/v5"
)

// ErrSettingNotFound is returned when the key has no stored value.
var ErrSettingNotFound = errors.New("setting not found")

// PostgresSettingsRepository is a key-value store shared with the rest
// of the storefront; the core uses it as the persisted currency-rate
// cache. Readers tolerate stale values up to the configured TTL.
type PostgresSettingsRepository struct {
	conn postgres.GenericConn
}

// NewPostgresSettingsRepository creates a new Postgres settings repository.
func NewPostgresSettingsRepository(conn postgres.GenericConn) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{conn: conn}
}

// Get returns the stored value for key.
func (r *PostgresSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.conn.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting: %w", err)
	}

	return value, nil
}

// Set upserts the value for key. Last writer wins.
func (r *PostgresSettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}

	return nil
}
