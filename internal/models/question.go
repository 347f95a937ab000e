package models

import "time"

type Provenance string

const (
	ProvenanceHistorical Provenance = "historical"
	ProvenanceGenerated  Provenance = "generated"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// OptionLabels is the fixed set of option labels every question carries,
// in serving order.
var OptionLabels = []string{"A", "B", "C", "D"}

var ValidOptionLabels = map[string]bool{"A": true, "B": true, "C": true, "D": true}

// ── Core Structs ───────────────────────────────────────

type Topic struct {
	ID        int64     `json:"id"`
	Exam      string    `json:"exam"`
	Subject   string    `json:"subject"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is immutable once persisted. Historical questions come from the
// ingestion pipeline; generated questions are persisted when the orchestrator
// accepts them.
type Question struct {
	ID           int64      `json:"id"`
	TopicID      int64      `json:"topic_id"`
	QuestionText string     `json:"question_text"`
	Options      []Option   `json:"options"`
	CorrectLabel string     `json:"correct_label"`
	Explanation  string     `json:"explanation,omitempty"`
	Provenance   Provenance `json:"provenance"`
	SourceYear   *int       `json:"source_year,omitempty"`
	Difficulty   Difficulty `json:"difficulty"`
	IsValid      bool       `json:"is_valid"`
	TimesServed  int        `json:"times_served"`
	TimesCorrect int        `json:"times_correct"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// OptionText returns the text for a label, or "" when the label is unknown.
func (q *Question) OptionText(label string) string {
	for _, o := range q.Options {
		if o.Label == label {
			return o.Text
		}
	}
	return ""
}

// ── Serving Types (strip answers before the test is submitted) ──

type ServedQuestion struct {
	ID           int64      `json:"id"`
	TopicID      int64      `json:"topic_id"`
	QuestionText string     `json:"question_text"`
	Options      []Option   `json:"options"`
	Provenance   Provenance `json:"provenance"`
	Difficulty   Difficulty `json:"difficulty"`
}

func (q *Question) ToServed() ServedQuestion {
	return ServedQuestion{
		ID:           q.ID,
		TopicID:      q.TopicID,
		QuestionText: q.QuestionText,
		Options:      q.Options,
		Provenance:   q.Provenance,
		Difficulty:   q.Difficulty,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}
