package models

import "time"

// ── Mock Test Attempt ────────────────────────────────────

// MockTestAttempt snapshots an assembled set when a test starts. The
// question id list is immutable from that point; responses and the computed
// outcome are filled in at finalization.
type MockTestAttempt struct {
	ID               string     `json:"id"`
	UserID           int64      `json:"user_id"`
	TopicID          int64      `json:"topic_id"`
	QuestionIDs      []int64    `json:"question_ids"`
	HistoricalCount  int        `json:"historical_count"`
	GeneratedCount   int        `json:"generated_count"`
	Degraded         bool       `json:"degraded"`
	DegradedReason   string     `json:"degraded_reason,omitempty"`
	Responses        []Response `json:"responses,omitempty"`
	ScorePercent     *int       `json:"score_percent,omitempty"`
	CorrectCount     *int       `json:"correct_count,omitempty"`
	StarEarned       *bool      `json:"star_earned,omitempty"`
	FeedbackTier     string     `json:"feedback_tier,omitempty"`
	TotalTimeSeconds *int       `json:"total_time_seconds,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinalizedAt      *time.Time `json:"finalized_at,omitempty"`
}

func (a *MockTestAttempt) Finalized() bool {
	return a.FinalizedAt != nil
}

// Response is one submitted answer. An empty SelectedLabel means the
// question was skipped.
type Response struct {
	QuestionID    int64  `json:"question_id"`
	SelectedLabel string `json:"selected_label"`
}

// ── Request Types ────────────────────────────────────────

type StartTestRequest struct {
	TopicID   int64    `json:"topic_id"`
	UserID    int64    `json:"user_id"`
	SessionID string   `json:"session_id,omitempty"`
	Count     *int     `json:"count,omitempty"`
	Ratio     *float64 `json:"ratio,omitempty"`
}

type SubmitTestRequest struct {
	Responses        []Response `json:"responses"`
	TotalTimeSeconds int        `json:"total_time_seconds"`
}

// ── Response Types ───────────────────────────────────────

type StartTestResponse struct {
	TestID    string           `json:"test_id"`
	Questions []ServedQuestion `json:"questions"`
	Metadata  TestMetadata     `json:"metadata"`
}

type TestMetadata struct {
	Cached           bool   `json:"cached"`
	GenerationTimeMs int64  `json:"generation_time_ms"`
	HistoricalCount  int    `json:"historical_count"`
	GeneratedCount   int    `json:"generated_count"`
	Degraded         bool   `json:"degraded"`
	DegradedReason   string `json:"degraded_reason,omitempty"`
}

type SubmitTestResponse struct {
	TestID       string            `json:"test_id"`
	ScorePercent int               `json:"score_percentage"`
	CorrectCount int               `json:"correct_count"`
	Total        int               `json:"total"`
	StarEarned   bool              `json:"star_earned"`
	FeedbackTier string            `json:"feedback_tier"`
	Feedback     string            `json:"feedback"`
	Breakdown    []QuestionOutcome `json:"breakdown"`
}

// QuestionOutcome reveals the correct answer and explanation for one
// question after submission.
type QuestionOutcome struct {
	QuestionID    int64  `json:"question_id"`
	QuestionText  string `json:"question_text"`
	SelectedLabel string `json:"selected_label,omitempty"`
	CorrectLabel  string `json:"correct_label"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation,omitempty"`
}

// TestReview is the GET view of an attempt. Breakdown is present only once
// the attempt has been submitted; before that the correct answers stay hidden.
type TestReview struct {
	Attempt   *MockTestAttempt  `json:"attempt"`
	Breakdown []QuestionOutcome `json:"breakdown,omitempty"`
}

type PrewarmResponse struct {
	Status string `json:"status"`
}
