package mocktest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// Store persists mock test attempts.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateAttempt inserts a new attempt with its frozen question order.
func (s *Store) CreateAttempt(ctx context.Context, a *models.MockTestAttempt) error {
	query := `
		INSERT INTO mock_test_attempts
			(id, user_id, topic_id, question_ids, historical_count, generated_count, degraded, degraded_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING started_at`

	err := s.db.QueryRowContext(ctx, query,
		a.ID, a.UserID, a.TopicID, pq.Array(a.QuestionIDs),
		a.HistoricalCount, a.GeneratedCount, a.Degraded, a.DegradedReason,
	).Scan(&a.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// GetAttempt loads an attempt by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetAttempt(ctx context.Context, id string) (*models.MockTestAttempt, error) {
	query := `
		SELECT id, user_id, topic_id, question_ids, historical_count, generated_count,
		       degraded, degraded_reason, responses, score_percent, correct_count,
		       star_earned, feedback_tier, total_time_seconds, started_at, finalized_at
		FROM mock_test_attempts
		WHERE id = $1`

	var a models.MockTestAttempt
	var ids pq.Int64Array
	var responses []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.TopicID, &ids, &a.HistoricalCount, &a.GeneratedCount,
		&a.Degraded, &a.DegradedReason, &responses, &a.ScorePercent, &a.CorrectCount,
		&a.StarEarned, &a.FeedbackTier, &a.TotalTimeSeconds, &a.StartedAt, &a.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}
	a.QuestionIDs = []int64(ids)
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &a.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode responses for attempt %s: %w", id, err)
		}
	}
	return &a, nil
}

// FinalizeAttempt records the submitted responses and outcome. It succeeds
// at most once per attempt: the finalized_at IS NULL guard makes a second
// submission a no-op, reported by the returned bool.
func (s *Store) FinalizeAttempt(ctx context.Context, a *models.MockTestAttempt) (bool, error) {
	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return false, fmt.Errorf("failed to encode responses: %w", err)
	}

	query := `
		UPDATE mock_test_attempts
		SET responses = $2, score_percent = $3, correct_count = $4, star_earned = $5,
		    feedback_tier = $6, total_time_seconds = $7, finalized_at = NOW()
		WHERE id = $1 AND finalized_at IS NULL`

	res, err := s.db.ExecContext(ctx, query,
		a.ID, responses, a.ScorePercent, a.CorrectCount, a.StarEarned,
		a.FeedbackTier, a.TotalTimeSeconds,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
