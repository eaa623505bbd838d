package customers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/configstore"
	"github.com/remindly/expiry-notifier/internal/domain"
)

// Runner executes an externally supplied SQL statement against a relational
// store and returns the result rows. The pgx implementation is in pg_runner.go;
// tests use a mock.
type Runner interface {
	Run(ctx context.Context, databaseURL, sqlText string) ([]domain.CustomerRow, error)
}

// Service resolves the expiring-customer query and its database credentials
// from the config store on every call, then executes the query verbatim.
// The SQL text is trusted as stored; this layer applies no parameterization.
type Service struct {
	store    configstore.Store
	runner   Runner
	credsKey string
	queryKey string
	logger   *zap.Logger
}

func NewService(
	store configstore.Store,
	runner Runner,
	credsKey, queryKey string,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		runner:   runner,
		credsKey: credsKey,
		queryKey: queryKey,
		logger:   logger,
	}
}

// FetchExpiring returns the customers whose payments have expired.
// A missing query or credential record fails with domain.ErrConfigMissing;
// connection and execution failures surface as *domain.QueryError. No retry.
func (s *Service) FetchExpiring(ctx context.Context) ([]domain.CustomerRow, error) {
	query, err := s.store.Get(ctx, s.queryKey)
	if err != nil {
		return nil, fmt.Errorf("resolve query %q: %w", s.queryKey, err)
	}
	if query.SQLQuery == "" {
		return nil, fmt.Errorf("resolve query %q: %w", s.queryKey, domain.ErrConfigMissing)
	}

	creds, err := s.store.Get(ctx, s.credsKey)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials %q: %w", s.credsKey, err)
	}

	rows, err := s.runner.Run(ctx, creds.DatabaseURL(), query.SQLQuery)
	if err != nil {
		return nil, &domain.QueryError{Cause: err}
	}

	s.logger.Debug("expiring-customer query executed", zap.Int("rows", len(rows)))
	return rows, nil
}
