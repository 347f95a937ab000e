package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

type candidateEnvelope struct {
	Questions []Candidate `json:"questions"`
}

// ValidationError reports why a backend response failed the envelope parse.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// ParseCandidates extracts candidate questions from a raw backend response.
// Only the JSON envelope is checked here; per-candidate schema checks happen
// at acceptance so one malformed candidate does not discard its batch.
func ParseCandidates(responseBody string) ([]Candidate, error) {
	cleaned := stripCodeFences(responseBody)

	var env candidateEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if len(env.Questions) == 0 {
		return nil, &ValidationError{Errors: []string{"no questions in response"}}
	}
	return env.Questions, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// ── Acceptance Schema ──────────────────────────────────────

// Length bounds on generated question text. Below the floor the text is
// almost certainly a fragment; above the ceiling it will not render in the
// timed-test UI.
const (
	minQuestionLen = 20
	maxQuestionLen = 2000
)

// ValidateCandidate enforces the acceptance schema on one candidate:
// bounded question text, exactly four options labeled A-D in order,
// non-empty option texts, and a correct label matching one of them.
func ValidateCandidate(c Candidate) error {
	text := strings.TrimSpace(c.QuestionText)
	if text == "" {
		return fmt.Errorf("empty question_text")
	}
	if len(text) < minQuestionLen {
		return fmt.Errorf("question_text too short (%d chars, minimum %d)", len(text), minQuestionLen)
	}
	if len(text) > maxQuestionLen {
		return fmt.Errorf("question_text too long (%d chars, maximum %d)", len(text), maxQuestionLen)
	}
	if len(c.Options) != len(models.OptionLabels) {
		return fmt.Errorf("expected %d options, got %d", len(models.OptionLabels), len(c.Options))
	}
	for i, o := range c.Options {
		if o.Label != models.OptionLabels[i] {
			return fmt.Errorf("option %d has label %q, expected %q", i+1, o.Label, models.OptionLabels[i])
		}
		if strings.TrimSpace(o.Text) == "" {
			return fmt.Errorf("option %s has empty text", o.Label)
		}
	}
	if !models.ValidOptionLabels[c.CorrectLabel] {
		return fmt.Errorf("invalid correct_label %q", c.CorrectLabel)
	}
	return nil
}

// NormalizedDifficulty maps a candidate's free-form difficulty onto the
// persisted enum, defaulting to medium.
func NormalizedDifficulty(c Candidate) models.Difficulty {
	d := models.Difficulty(strings.ToLower(strings.TrimSpace(c.Difficulty)))
	if models.ValidDifficulties[d] {
		return d
	}
	return models.DifficultyMedium
}

// ── Duplicate Rejection ────────────────────────────────────

// Acceptor applies the acceptance schema and rejects duplicates against the
// topic's bank and against candidates already accepted this assembly.
type Acceptor struct {
	seen        map[string]bool
	accepted    []string
	labelCounts map[string]int
}

// NewAcceptor seeds duplicate detection with the normalized texts of every
// question already in the bank for the topic.
func NewAcceptor(bankTexts map[string]bool) *Acceptor {
	seen := make(map[string]bool, len(bankTexts))
	for t := range bankTexts {
		seen[t] = true
	}
	return &Acceptor{seen: seen, labelCounts: make(map[string]int)}
}

// Accept returns a non-empty reason when the candidate is rejected.
// Accepted candidates are remembered so later duplicates in the same
// assembly are rejected too.
func (a *Acceptor) Accept(c Candidate) (ok bool, reason string) {
	if err := ValidateCandidate(c); err != nil {
		return false, err.Error()
	}
	key := NormalizeText(c.QuestionText)
	if a.seen[key] {
		return false, "duplicate question text"
	}
	for _, prev := range a.accepted {
		if NearDuplicate(prev, c.QuestionText, 0.60) {
			return false, "near-duplicate of accepted candidate"
		}
	}
	a.seen[key] = true
	a.accepted = append(a.accepted, c.QuestionText)
	a.labelCounts[c.CorrectLabel]++
	return true, ""
}

// SkewedLabel reports a correct-answer label that holds more than half of
// the accepted candidates, once enough have been accepted to judge. A skewed
// distribution is a generation quality smell worth logging, not a rejection.
func (a *Acceptor) SkewedLabel() (string, bool) {
	if len(a.accepted) < 4 {
		return "", false
	}
	for label, n := range a.labelCounts {
		if n*2 > len(a.accepted) {
			return label, true
		}
	}
	return "", false
}

// NormalizeText lowercases and collapses whitespace so trivially reworded
// copies of the same question compare equal.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NearDuplicate reports whether two texts share more than the given fraction
// of their keywords (Jaccard similarity over words longer than 3 runes).
func NearDuplicate(a, b string, threshold float64) bool {
	return jaccardSimilarity(tokenize(a), tokenize(b)) > threshold
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if len(word) > 3 {
			tokens[word] = true
		}
	}
	return tokens
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
