package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// Backend is a single generative backend. Implementations must honor the
// context deadline and return provider errors typed so the orchestrator can
// recover locally instead of failing the request.
type Backend interface {
	Generate(ctx context.Context, bundle PromptBundle) ([]Candidate, error)
	Name() string
}

// PromptBundle carries everything one generation batch needs: the topic and
// subject names, a short exam style descriptor, a handful of historical
// questions as style exemplars, and the batch size.
type PromptBundle struct {
	Topic     string
	Subject   string
	ExamStyle string
	Exemplars []models.Question
	BatchSize int
}

// Candidate is one generated question as returned by a backend, before
// acceptance. It has no persisted id.
type Candidate struct {
	QuestionText string          `json:"question_text"`
	Options      []models.Option `json:"options"`
	CorrectLabel string          `json:"correct_label"`
	Explanation  string          `json:"explanation"`
	Difficulty   string          `json:"difficulty"`
}

// ── Provider Error Taxonomy ────────────────────────────────

// ErrProviderTimeout indicates a backend call exceeded its per-call timeout.
type ErrProviderTimeout struct {
	Backend string
	Timeout time.Duration
	Err     error
}

func (e *ErrProviderTimeout) Error() string {
	return fmt.Sprintf("provider %s timed out after %s: %v", e.Backend, e.Timeout, e.Err)
}

func (e *ErrProviderTimeout) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates a backend is down, unreachable, or
// returned an unusable response.
type ErrProviderUnavailable struct {
	Backend string
	Err     error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s unavailable: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("provider %s unavailable", e.Backend)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrBackendsExhausted is returned by a chain run once every backend in the
// fallback order has failed.
type ErrBackendsExhausted struct {
	LastErr error
}

func (e *ErrBackendsExhausted) Error() string {
	return fmt.Sprintf("all generation backends exhausted: %v", e.LastErr)
}

func (e *ErrBackendsExhausted) Unwrap() error { return e.LastErr }

// classifyErr wraps a raw backend error into the provider taxonomy.
func classifyErr(backend string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrProviderTimeout{Backend: backend, Timeout: timeout, Err: err}
	}
	return &ErrProviderUnavailable{Backend: backend, Err: err}
}
