package scoring

import (
	"context"
	"log"
	"math"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// Feedback tiers, ordered best to worst.
const (
	TierStar      = "star"
	TierKeepGoing = "keep_going"
	TierRestudy   = "restudy"
)

var tierFeedback = map[string]string{
	TierStar:      "Excellent work! You earned a star for this topic.",
	TierKeepGoing: "Good effort — a little more practice and the star is yours.",
	TierRestudy:   "This topic needs another pass. Restudy the material and try again.",
}

// HistoryRecorder receives the question ids used by a finalized attempt.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, topicID int64, attemptID string, questionIDs []int64) error
}

// Engine grades submitted responses against an assembled set. The two
// thresholds are percentages: at or above StarThreshold earns a star, below
// RetryThreshold triggers the restudy suggestion.
type Engine struct {
	starThreshold  float64
	retryThreshold float64
	history        HistoryRecorder
}

func NewEngine(starThreshold, retryThreshold float64, history HistoryRecorder) *Engine {
	return &Engine{
		starThreshold:  starThreshold,
		retryThreshold: retryThreshold,
		history:        history,
	}
}

// Result is the graded outcome of one attempt. ScorePercent is rounded for
// display; threshold comparisons use the full-precision percentage.
type Result struct {
	ScorePercent int
	CorrectCount int
	Total        int
	StarEarned   bool
	FeedbackTier string
	Feedback     string
	Breakdown    []models.QuestionOutcome
}

// Grade scores responses against the attempt's questions. Questions with no
// matching response count as incorrect and appear in the breakdown with an
// empty selected label.
func (e *Engine) Grade(questions []models.Question, responses []models.Response) *Result {
	selected := make(map[int64]string, len(responses))
	for _, r := range responses {
		selected[r.QuestionID] = r.SelectedLabel
	}

	correct := 0
	breakdown := make([]models.QuestionOutcome, 0, len(questions))
	for _, q := range questions {
		sel := selected[q.ID]
		isCorrect := sel != "" && sel == q.CorrectLabel
		if isCorrect {
			correct++
		}
		breakdown = append(breakdown, models.QuestionOutcome{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			SelectedLabel: sel,
			CorrectLabel:  q.CorrectLabel,
			Correct:       isCorrect,
			Explanation:   q.Explanation,
		})
	}

	total := len(questions)
	exact := 0.0
	if total > 0 {
		exact = float64(correct) / float64(total) * 100
	}

	tier := TierRestudy
	switch {
	case exact >= e.starThreshold:
		tier = TierStar
	case exact >= e.retryThreshold:
		tier = TierKeepGoing
	}

	return &Result{
		ScorePercent: int(math.Round(exact)),
		CorrectCount: correct,
		Total:        total,
		StarEarned:   tier == TierStar,
		FeedbackTier: tier,
		Feedback:     tierFeedback[tier],
		Breakdown:    breakdown,
	}
}

// RecordHistory appends the attempt's question ids to the user's seen set.
// Called exactly once per finalized attempt; a failure here never fails the
// submission, the retention window just misses one attempt.
func (e *Engine) RecordHistory(ctx context.Context, userID, topicID int64, attemptID string, questionIDs []int64) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(ctx, userID, topicID, attemptID, questionIDs); err != nil {
		log.Printf("WARN: failed to record question history for attempt %s: %v", attemptID, err)
	}
}
