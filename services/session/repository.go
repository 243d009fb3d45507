package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines data access for persisted session variables.
type Repository interface {
	// LoadVariables returns the variable mapping captured for a session,
	// optionally narrowed to keys under scope.
	LoadVariables(ctx context.Context, sessionID, scope string) (map[string]any, error)

	// SaveVariables upserts the given mapping for a session.
	SaveVariables(ctx context.Context, sessionID string, vars map[string]any) error

	// DeleteVariables removes everything stored for a session.
	DeleteVariables(ctx context.Context, sessionID string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LoadVariables retrieves all variables stored for a session
func (r *PostgresRepository) LoadVariables(ctx context.Context, sessionID, scope string) (map[string]any, error) {
	query := `
		SELECT session_id, key, value, scope, updated_at
		FROM session_variables
		WHERE session_id = $1
		  AND ($2 = '' OR key LIKE $2 || '%')
	`

	rows, err := r.db.Query(ctx, query, sessionID, scope)
	if err != nil {
		return nil, fmt.Errorf("query variables for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[SessionVariable])
	if err != nil {
		return nil, fmt.Errorf("scan variables for session %s: %w", sessionID, err)
	}

	vars := make(map[string]any, len(records))
	for i := range records {
		vars[records[i].Key] = records[i].decode()
	}
	return vars, nil
}

// SaveVariables upserts the mapping inside one transaction so a resumed
// session never observes a half-written snapshot
func (r *PostgresRepository) SaveVariables(ctx context.Context, sessionID string, vars map[string]any) error {
	query := `
		INSERT INTO session_variables (session_id, key, value, scope, updated_at)
		VALUES ($1, $2, $3, '', now())
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save for session %s: %w", sessionID, err)
	}
	defer tx.Rollback(ctx)

	for key, value := range vars {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode variable %s for session %s: %w", key, sessionID, err)
		}
		if _, err := tx.Exec(ctx, query, sessionID, key, encoded); err != nil {
			return fmt.Errorf("upsert variable %s for session %s: %w", key, sessionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save for session %s: %w", sessionID, err)
	}
	return nil
}

// DeleteVariables removes every row for a session
func (r *PostgresRepository) DeleteVariables(ctx context.Context, sessionID string) error {
	query := `DELETE FROM session_variables WHERE session_id = $1`

	if _, err := r.db.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("delete variables for session %s: %w", sessionID, err)
	}
	return nil
}
