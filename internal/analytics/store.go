package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/waveleads/lead-agent-platform/pkg/logging"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists daily rollups to the daily_analytics table.
type Store struct {
	db     db
	logger *logging.Logger
}

// NewStore creates an analytics store over a pgx pool (or compatible).
func NewStore(database db, logger *logging.Logger) *Store {
	if database == nil {
		panic("analytics: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: database, logger: logger}
}

// Upsert writes the rollup, replacing any earlier row for the same day.
func (s *Store) Upsert(ctx context.Context, r Rollup) error {
	stageCounts, err := json.Marshal(r.StageCounts)
	if err != nil {
		return fmt.Errorf("analytics: failed to encode stage counts: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO daily_analytics (
			day, conversations_started, conversations_completed,
			conversations_abandoned, messages_in, messages_out,
			bookings_confirmed, leads_forwarded, avg_lead_score,
			stage_counts, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (day) DO UPDATE SET
			conversations_started   = EXCLUDED.conversations_started,
			conversations_completed = EXCLUDED.conversations_completed,
			conversations_abandoned = EXCLUDED.conversations_abandoned,
			messages_in             = EXCLUDED.messages_in,
			messages_out            = EXCLUDED.messages_out,
			bookings_confirmed      = EXCLUDED.bookings_confirmed,
			leads_forwarded         = EXCLUDED.leads_forwarded,
			avg_lead_score          = EXCLUDED.avg_lead_score,
			stage_counts            = EXCLUDED.stage_counts,
			updated_at              = now()
	`, r.Day, r.ConversationsStarted, r.ConversationsCompleted,
		r.ConversationsAbandoned, r.MessagesIn, r.MessagesOut,
		r.BookingsConfirmed, r.LeadsForwarded, r.AvgLeadScore, stageCounts)
	if err != nil {
		return fmt.Errorf("analytics: failed to upsert rollup: %w", err)
	}
	return nil
}

// Get fetches the rollup for one UTC day, if present.
func (s *Store) Get(ctx context.Context, day time.Time) (Rollup, error) {
	var r Rollup
	var stageCounts []byte
	err := s.db.QueryRow(ctx, `
		SELECT day, conversations_started, conversations_completed,
		       conversations_abandoned, messages_in, messages_out,
		       bookings_confirmed, leads_forwarded, avg_lead_score, stage_counts
		FROM daily_analytics WHERE day = $1
	`, day.UTC().Truncate(24*time.Hour)).Scan(
		&r.Day, &r.ConversationsStarted, &r.ConversationsCompleted,
		&r.ConversationsAbandoned, &r.MessagesIn, &r.MessagesOut,
		&r.BookingsConfirmed, &r.LeadsForwarded, &r.AvgLeadScore, &stageCounts)
	if err != nil {
		return Rollup{}, fmt.Errorf("analytics: failed to fetch rollup: %w", err)
	}
	if len(stageCounts) > 0 {
		if err := json.Unmarshal(stageCounts, &r.StageCounts); err != nil {
			return Rollup{}, fmt.Errorf("analytics: failed to decode stage counts: %w", err)
		}
	}
	return r, nil
}

// ListRecent returns the most recent rollups, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Rollup, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(ctx, `
		SELECT day, conversations_started, conversations_completed,
		       conversations_abandoned, messages_in, messages_out,
		       bookings_confirmed, leads_forwarded, avg_lead_score, stage_counts
		FROM daily_analytics ORDER BY day DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to list rollups: %w", err)
	}
	defer rows.Close()

	var results []Rollup
	for rows.Next() {
		var r Rollup
		var stageCounts []byte
		if err := rows.Scan(&r.Day, &r.ConversationsStarted, &r.ConversationsCompleted,
			&r.ConversationsAbandoned, &r.MessagesIn, &r.MessagesOut,
			&r.BookingsConfirmed, &r.LeadsForwarded, &r.AvgLeadScore, &stageCounts); err != nil {
			return nil, fmt.Errorf("analytics: failed to scan rollup: %w", err)
		}
		if len(stageCounts) > 0 {
			if err := json.Unmarshal(stageCounts, &r.StageCounts); err != nil {
				return nil, fmt.Errorf("analytics: failed to decode stage counts: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: rollup iteration: %w", err)
	}
	return results, nil
}
