package configstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remindly/expiry-notifier/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by the app_config table in PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Get(ctx context.Context, key string) (*domain.CredentialRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT key, db_host, db_port, db_name, db_user, db_password,
		       page_access_token, sql_query, message_text
		FROM app_config WHERE key = $1`, key)

	var rec domain.CredentialRecord
	err := row.Scan(
		&rec.Key, &rec.DBHost, &rec.DBPort, &rec.DBName, &rec.DBUser,
		&rec.DBPassword, &rec.PageAccessToken, &rec.SQLQuery, &rec.MessageText,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConfigMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", key, err)
	}
	return &rec, nil
}
