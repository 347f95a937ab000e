package mocktest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/assembly"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/scoring"
)

var (
	ErrAttemptNotFound   = errors.New("test attempt not found")
	ErrAlreadyFinalized  = errors.New("test attempt already submitted")
	ErrInvalidSubmission = errors.New("invalid submission")
)

// QuestionLoader is the service's read/write slice of the question bank.
type QuestionLoader interface {
	ByIDs(ctx context.Context, ids []int64) ([]models.Question, error)
	IncrementServed(ctx context.Context, ids []int64) error
	IncrementCorrect(ctx context.Context, ids []int64) error
}

// AttemptStore persists attempts. FinalizeAttempt reports false when the
// attempt was already finalized.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *models.MockTestAttempt) error
	GetAttempt(ctx context.Context, id string) (*models.MockTestAttempt, error)
	FinalizeAttempt(ctx context.Context, a *models.MockTestAttempt) (bool, error)
}

// Config carries the policy knobs the service needs from the environment.
type Config struct {
	DefaultCount       int
	DefaultRatio       float64
	SyncDeadline       time.Duration
	BackgroundDeadline time.Duration
}

// Service runs the mock test lifecycle: start (assemble or reuse a cached
// set, freeze the attempt), submit (grade exactly once), review.
type Service struct {
	cache    *assembly.Cache
	bank     QuestionLoader
	attempts AttemptStore
	engine   *scoring.Engine
	cfg      Config
}

func NewService(cache *assembly.Cache, bank QuestionLoader, attempts AttemptStore, engine *scoring.Engine, cfg Config) *Service {
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = 10
	}
	if cfg.DefaultRatio <= 0 || cfg.DefaultRatio > 1 {
		cfg.DefaultRatio = 0.5
	}
	if cfg.SyncDeadline <= 0 {
		cfg.SyncDeadline = 6 * time.Second
	}
	if cfg.BackgroundDeadline <= 0 {
		cfg.BackgroundDeadline = 15 * time.Second
	}
	return &Service{cache: cache, bank: bank, attempts: attempts, engine: engine, cfg: cfg}
}

// StartTest assembles (or picks up a pre-generated) question set, freezes it
// into a new attempt with a per-attempt shuffle, and serves the questions
// with answers stripped.
func (s *Service) StartTest(ctx context.Context, req models.StartTestRequest) (*models.StartTestResponse, error) {
	genReq := s.generationRequest(req)
	key := assembly.CacheKey(req.SessionID, req.UserID, req.TopicID)

	set, cached, err := s.cache.GetOrGenerate(ctx, key, genReq, s.cfg.SyncDeadline)
	if err != nil {
		return nil, err
	}

	attemptID := uuid.New()
	attempt := &models.MockTestAttempt{
		ID:              attemptID.String(),
		UserID:          req.UserID,
		TopicID:         req.TopicID,
		QuestionIDs:     assembly.ShuffleForAttempt(set.QuestionIDs, attemptID),
		HistoricalCount: set.HistoricalCount,
		GeneratedCount:  set.GeneratedCount,
		Degraded:        set.Degraded,
		DegradedReason:  set.DegradedReason,
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to start test: %w", err)
	}

	// The set now belongs to this attempt; a later start gets a fresh one.
	s.cache.Consume(key)

	questions, err := s.bank.ByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load test questions: %w", err)
	}

	if err := s.bank.IncrementServed(ctx, attempt.QuestionIDs); err != nil {
		log.Printf("WARN: failed to bump served counters for attempt %s: %v", attempt.ID, err)
	}

	served := make([]models.ServedQuestion, len(questions))
	for i := range questions {
		served[i] = questions[i].ToServed()
	}

	return &models.StartTestResponse{
		TestID:    attempt.ID,
		Questions: served,
		Metadata: models.TestMetadata{
			Cached:           cached,
			GenerationTimeMs: set.GenerationTimeMs,
			HistoricalCount:  set.HistoricalCount,
			GeneratedCount:   set.GeneratedCount,
			Degraded:         set.Degraded,
			DegradedReason:   set.DegradedReason,
		},
	}, nil
}

// Submit grades an attempt exactly once. A second submission, concurrent or
// not, fails with ErrAlreadyFinalized; history and counters are only touched
// by the submission that won the finalize.
func (s *Service) Submit(ctx context.Context, testID string, req models.SubmitTestRequest) (*models.SubmitTestResponse, error) {
	attempt, err := s.attempts.GetAttempt(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.Finalized() {
		return nil, ErrAlreadyFinalized
	}
	if err := validateResponses(attempt, req.Responses); err != nil {
		return nil, err
	}

	questions, err := s.bank.ByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt questions: %w", err)
	}

	result := s.engine.Grade(questions, req.Responses)

	attempt.Responses = req.Responses
	attempt.ScorePercent = &result.ScorePercent
	attempt.CorrectCount = &result.CorrectCount
	attempt.StarEarned = &result.StarEarned
	attempt.FeedbackTier = result.FeedbackTier
	attempt.TotalTimeSeconds = &req.TotalTimeSeconds

	won, err := s.attempts.FinalizeAttempt(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize attempt: %w", err)
	}
	if !won {
		return nil, ErrAlreadyFinalized
	}

	s.engine.RecordHistory(ctx, attempt.UserID, attempt.TopicID, attempt.ID, attempt.QuestionIDs)

	var correctIDs []int64
	for _, o := range result.Breakdown {
		if o.Correct {
			correctIDs = append(correctIDs, o.QuestionID)
		}
	}
	if len(correctIDs) > 0 {
		if err := s.bank.IncrementCorrect(ctx, correctIDs); err != nil {
			log.Printf("WARN: failed to bump correct counters for attempt %s: %v", attempt.ID, err)
		}
	}

	return &models.SubmitTestResponse{
		TestID:       attempt.ID,
		ScorePercent: result.ScorePercent,
		CorrectCount: result.CorrectCount,
		Total:        result.Total,
		StarEarned:   result.StarEarned,
		FeedbackTier: result.FeedbackTier,
		Feedback:     result.Feedback,
		Breakdown:    result.Breakdown,
	}, nil
}

// Review returns an attempt for the GET endpoint. Correct answers and
// explanations are only included once the attempt has been submitted.
func (s *Service) Review(ctx context.Context, testID string) (*models.TestReview, error) {
	attempt, err := s.attempts.GetAttempt(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	review := &models.TestReview{Attempt: attempt}
	if !attempt.Finalized() {
		return review, nil
	}

	questions, err := s.bank.ByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt questions: %w", err)
	}
	review.Breakdown = s.engine.Grade(questions, attempt.Responses).Breakdown
	return review, nil
}

// Prewarm starts a background assembly for a key unless one is already
// pending or ready, and reports the key's state.
func (s *Service) Prewarm(req models.StartTestRequest) *models.PrewarmResponse {
	genReq := s.generationRequest(req)
	key := assembly.CacheKey(req.SessionID, req.UserID, req.TopicID)

	status := s.cache.Status(key)
	if status != assembly.StatusMissing {
		return &models.PrewarmResponse{Status: string(status)}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BackgroundDeadline)
		defer cancel()
		if _, _, err := s.cache.GetOrGenerate(ctx, key, genReq, s.cfg.BackgroundDeadline); err != nil {
			log.Printf("WARN: prewarm failed for key %s: %v", key, err)
		}
	}()
	return &models.PrewarmResponse{Status: string(assembly.StatusPending)}
}

func (s *Service) generationRequest(req models.StartTestRequest) models.GenerationRequest {
	count := s.cfg.DefaultCount
	if req.Count != nil {
		count = *req.Count
	}
	ratio := s.cfg.DefaultRatio
	if req.Ratio != nil {
		ratio = *req.Ratio
	}
	return models.GenerationRequest{
		TopicID:         req.TopicID,
		UserID:          req.UserID,
		SessionID:       req.SessionID,
		Count:           count,
		HistoricalRatio: ratio,
	}
}

func validateResponses(attempt *models.MockTestAttempt, responses []models.Response) error {
	inSet := make(map[int64]bool, len(attempt.QuestionIDs))
	for _, id := range attempt.QuestionIDs {
		inSet[id] = true
	}
	answered := make(map[int64]bool, len(responses))
	for _, r := range responses {
		if !inSet[r.QuestionID] {
			return fmt.Errorf("%w: question %d is not part of this test", ErrInvalidSubmission, r.QuestionID)
		}
		if answered[r.QuestionID] {
			return fmt.Errorf("%w: question %d answered more than once", ErrInvalidSubmission, r.QuestionID)
		}
		answered[r.QuestionID] = true
		if r.SelectedLabel != "" && !models.ValidOptionLabels[r.SelectedLabel] {
			return fmt.Errorf("%w: invalid option label %q for question %d", ErrInvalidSubmission, r.SelectedLabel, r.QuestionID)
		}
	}
	return nil
}
