package customers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/remindly/expiry-notifier/internal/domain"
)

// PgRunner executes the stored query over a fresh pgx connection.
// The connection is opened and closed per call: credentials come from the
// config store and may rotate between invocations, so nothing is pooled.
type PgRunner struct{}

func NewPgRunner() *PgRunner { return &PgRunner{} }

func (PgRunner) Run(ctx context.Context, databaseURL, sqlText string) ([]domain.CustomerRow, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect customer database: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute stored query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var customers []domain.CustomerRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read result row: %w", err)
		}

		row := domain.CustomerRow{Fields: make(map[string]any, len(fields))}
		for i, fd := range fields {
			row.Fields[fd.Name] = values[i]
			if fd.Name == domain.RecipientColumn {
				if s, ok := values[i].(string); ok {
					row.RecipientID = s
				}
			}
		}
		customers = append(customers, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	return customers, nil
}
