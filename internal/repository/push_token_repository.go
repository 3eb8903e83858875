package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/expense-share/internal/database"
)

// PushTokenRepository handles push token database operations.
type PushTokenRepository struct {
	db database.PGXDB
}

// NewPushTokenRepository creates a new PushTokenRepository.
func NewPushTokenRepository(db database.PGXDB) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// Save stores token. It reports whether a new row was written.
func (r *PushTokenRepository) Save(ctx context.Context, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO push_tokens (token) VALUES ($1)
		ON CONFLICT (token) DO NOTHING
	`, token)
	if err != nil {
		return false, fmt.Errorf("failed to save push token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns every non-empty token in the order they were saved.
func (r *PushTokenRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT token FROM push_tokens WHERE btrim(token) <> '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query push tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push tokens: %w", err)
	}
	return tokens, nil
}
