package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Tracker is the append-only record of question ids a user has seen per
// topic. Reads are bounded to a retention window of recent attempts so the
// exclusion set cannot starve a small topic forever.
type Tracker struct {
	db        *sql.DB
	retention int
}

func NewTracker(db *sql.DB, retentionAttempts int) *Tracker {
	if retentionAttempts <= 0 {
		retentionAttempts = 5
	}
	return &Tracker{db: db, retention: retentionAttempts}
}

// Seen returns the question ids used by the user's most recent attempts on
// the topic, up to the retention window.
func (t *Tracker) Seen(ctx context.Context, userID, topicID int64) ([]int64, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT DISTINCT question_id
		 FROM user_question_history
		 WHERE user_id = $1 AND topic_id = $2
		   AND attempt_id IN (
		     SELECT attempt_id
		     FROM user_question_history
		     WHERE user_id = $1 AND topic_id = $2
		     GROUP BY attempt_id
		     ORDER BY MAX(seen_at) DESC
		     LIMIT $3
		   )`,
		userID, topicID, t.retention,
	)
	if err != nil {
		return nil, fmt.Errorf("query seen questions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen question: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Record appends the attempt's question ids. Inserts are idempotent per
// (user, topic, question, attempt), so concurrent finalizations of
// different attempts only ever grow the set.
func (t *Tracker) Record(ctx context.Context, userID, topicID int64, attemptID string, questionIDs []int64) error {
	if len(questionIDs) == 0 {
		return nil
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO user_question_history (user_id, topic_id, question_id, attempt_id)
		 SELECT $1, $2, qid, $3 FROM unnest($4::bigint[]) AS qid
		 ON CONFLICT DO NOTHING`,
		userID, topicID, attemptID, pq.Array(questionIDs),
	)
	if err != nil {
		return fmt.Errorf("record question history: %w", err)
	}
	return nil
}
