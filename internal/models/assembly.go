package models

import "time"

// Degraded reason codes recorded on an AssembledSet that missed the
// requested count or ratio.
const (
	DegradedInsufficientBank = "insufficient_bank"
	DegradedProviderFailure  = "provider_failure"
	DegradedDeadlineExceeded = "deadline_exceeded"
)

// GenerationRequest is constructed per assembly attempt and never persisted.
type GenerationRequest struct {
	TopicID   int64  `json:"topic_id"`
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`

	// Count is the requested total question count.
	Count int `json:"count"`

	// HistoricalRatio is the requested share of historical questions,
	// in [0, 1]. 1.0 means all historical, 0.0 means all generated.
	HistoricalRatio float64 `json:"ratio"`
}

// AssembledSet is the output of one assembly: exactly Count question ids
// unless Degraded is set, in which case DegradedReason records why.
type AssembledSet struct {
	TopicID         int64   `json:"topic_id"`
	QuestionIDs     []int64 `json:"question_ids"`
	HistoricalCount int     `json:"historical_count"`
	GeneratedCount  int     `json:"generated_count"`
	Degraded        bool    `json:"degraded"`
	DegradedReason  string  `json:"degraded_reason,omitempty"`

	// Generation telemetry, surfaced in start_test metadata.
	ProviderCalls      int    `json:"provider_calls"`
	CandidatesRejected int    `json:"candidates_rejected"`
	Backend            string `json:"backend,omitempty"`
	GenerationTimeMs   int64  `json:"generation_time_ms"`

	AssembledAt time.Time `json:"assembled_at"`
}

// Total returns the number of questions in the set.
func (s *AssembledSet) Total() int {
	return len(s.QuestionIDs)
}
