// Package records persists score deltas for post-match reporting. The
// live scoreboard never reads through here; this is the durable side
// effect of the same business action that broadcasts the update.
package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository writes score records to Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertScoreDeltaQuery = `
INSERT INTO score_records (match_code, player_code, d_score_earned, created_at)
VALUES ($1, $2, $3, NOW())
`

// RecordScoreDelta appends one score-delta record.
func (r *Repository) RecordScoreDelta(ctx context.Context, matchCode, playerCode string, delta int64) error {
	if _, err := r.pool.Exec(ctx, insertScoreDeltaQuery, matchCode, playerCode, delta); err != nil {
		return fmt.Errorf("insert score record: %w", err)
	}
	return nil
}
