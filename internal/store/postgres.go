// Package store provides persistent ranking score stores.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/rankiro/internal/ranking"
	"github.com/onnwee/rankiro/internal/tracing"
)

const scoresTable = "ranking_scores"

const scoreColumns = `item_id, category, score, rank, computed_at,
	views_weight, engagement_weight, recency_weight, quality_weight, trending_weight`

// PostgresStore implements ranking.Store using PostgreSQL.
// Every Save appends rows; reads use the latest row per item.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings a PostgreSQL database.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save implements ranking.Store. The batch is written with COPY in a
// single transaction.
func (s *PostgresStore) Save(ctx context.Context, scores []ranking.Score) (err error) {
	if len(scores) == 0 {
		return nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, scoresTable, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(scoresTable,
		"item_id", "category", "score", "rank", "computed_at",
		"views_weight", "engagement_weight", "recency_weight", "quality_weight", "trending_weight"))
	if err != nil {
		return fmt.Errorf("failed to prepare score copy: %w", err)
	}

	for _, sc := range scores {
		if _, err = stmt.ExecContext(ctx,
			sc.ItemID,
			sc.Category,
			sc.Score,
			sc.Rank,
			sc.ComputedAt,
			sc.Factors.Views,
			sc.Factors.Engagement,
			sc.Factors.Recency,
			sc.Factors.Quality,
			sc.Factors.Trending,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy score for %q: %w", sc.ItemID, err)
		}
	}

	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush score copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close score copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scores: %w", err)
	}
	return nil
}

// ByCategory implements ranking.Store.
func (s *PostgresStore) ByCategory(ctx context.Context, category string, limit, offset int) (scores []ranking.Score, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, scoresTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + scoreColumns + `
		FROM (
			SELECT DISTINCT ON (item_id) ` + scoreColumns + `
			FROM ranking_scores
			ORDER BY item_id, computed_at DESC, id DESC
		) latest
		WHERE category = $1
		ORDER BY score = 'NaN'::float8, score DESC, rank ASC, item_id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, category, limitArg(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to get scores by category: %w", err)
	}
	return scanScores(rows)
}

// History implements ranking.Store.
func (s *PostgresStore) History(ctx context.Context, itemID string, start, end *time.Time) (scores []ranking.Score, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, scoresTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + scoreColumns + `
		FROM ranking_scores
		WHERE item_id = $1
		  AND ($2::timestamptz IS NULL OR computed_at >= $2)
		  AND ($3::timestamptz IS NULL OR computed_at <= $3)
		ORDER BY computed_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, itemID, nullTime(start), nullTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}
	return scanScores(rows)
}

// TopRanked implements ranking.Store.
func (s *PostgresStore) TopRanked(ctx context.Context, limit int) (scores []ranking.Score, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, scoresTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + scoreColumns + `
		FROM (
			SELECT DISTINCT ON (item_id) ` + scoreColumns + `
			FROM ranking_scores
			ORDER BY item_id, computed_at DESC, id DESC
		) latest
		ORDER BY score = 'NaN'::float8, score DESC, rank ASC, item_id ASC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get top ranked scores: %w", err)
	}
	return scanScores(rows)
}

// limitArg maps a non-positive limit to NULL, which Postgres treats as no limit.
func limitArg(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanScores(rows *sql.Rows) ([]ranking.Score, error) {
	defer rows.Close()

	scores := []ranking.Score{}
	for rows.Next() {
		var sc ranking.Score
		err := rows.Scan(
			&sc.ItemID,
			&sc.Category,
			&sc.Score,
			&sc.Rank,
			&sc.ComputedAt,
			&sc.Factors.Views,
			&sc.Factors.Engagement,
			&sc.Factors.Recency,
			&sc.Factors.Quality,
			&sc.Factors.Trending,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking score: %w", err)
		}
		scores = append(scores, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking scores: %w", err)
	}
	return scores, nil
}
