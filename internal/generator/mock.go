package generator

import (
	"context"
	"fmt"
	"sync"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// MockBackend is a deterministic backend for local development and tests.
// Each call produces distinct, schema-valid candidates and the call log is
// retained so tests can assert on call counts.
type MockBackend struct {
	mu    sync.Mutex
	seq   int
	Calls []PromptBundle

	// Err, when set, is returned for every call.
	Err error
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) Name() string {
	return "mock"
}

func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockBackend) Generate(_ context.Context, bundle PromptBundle) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, bundle)
	if m.Err != nil {
		return nil, m.Err
	}

	cands := make([]Candidate, bundle.BatchSize)
	for i := range cands {
		m.seq++
		correct := models.OptionLabels[m.seq%len(models.OptionLabels)]
		opts := make([]models.Option, len(models.OptionLabels))
		for j, label := range models.OptionLabels {
			role := "a plausible but incorrect statement"
			if label == correct {
				role = "the correct statement"
			}
			opts[j] = models.Option{
				Label: label,
				Text:  fmt.Sprintf("[Mock %d%s] %s about %s", m.seq, label, role, bundle.Topic),
			}
		}
		cands[i] = Candidate{
			// Unique long tokens keep successive mock questions below the
			// near-duplicate threshold.
			QuestionText: fmt.Sprintf("[Mock %d] Which statement about %s is correct in scenario alpha%04d beta%04d gamma%04d delta%04d epsilon%04d?",
				m.seq, bundle.Topic, m.seq, m.seq, m.seq, m.seq, m.seq),
			Options:      opts,
			CorrectLabel: correct,
			Explanation:  fmt.Sprintf("[Mock %d] Option %s is the accepted fact about %s.", m.seq, correct, bundle.Topic),
			Difficulty:   "medium",
		}
	}
	return cands, nil
}
