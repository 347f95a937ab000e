package generator

import (
	"fmt"
	"strings"
)

const maxExemplars = 3

// SystemPrompt sets the generator's role. Kept short; the per-batch user
// prompt carries the topic, style, and exemplars.
func SystemPrompt() string {
	return `You are an expert question setter for competitive exams. You write original multiple-choice questions with exactly four options labeled A, B, C, D and exactly one correct option. Respond with JSON only, no prose and no markdown fences.`
}

// BuildUserPrompt renders one batch request: topic, subject, exam style,
// up to three historical exemplars, and the required output shape.
func BuildUserPrompt(bundle PromptBundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write %d original multiple-choice questions.\n\n", bundle.BatchSize)
	fmt.Fprintf(&sb, "EXAM STYLE: %s\n", bundle.ExamStyle)
	fmt.Fprintf(&sb, "SUBJECT: %s\n", bundle.Subject)
	fmt.Fprintf(&sb, "TOPIC: %s\n", bundle.Topic)

	exemplars := bundle.Exemplars
	if len(exemplars) > maxExemplars {
		exemplars = exemplars[:maxExemplars]
	}
	if len(exemplars) > 0 {
		sb.WriteString("\nSTYLE EXEMPLARS (past real questions on this topic — match their tone and scope, do NOT copy them):\n")
		for i, q := range exemplars {
			fmt.Fprintf(&sb, "\nExemplar %d: %s\n", i+1, q.QuestionText)
			for _, o := range q.Options {
				fmt.Fprintf(&sb, "(%s) %s\n", o.Label, o.Text)
			}
		}
	}

	sb.WriteString(`
Rules:
- Each question must be answerable from general knowledge of the topic, with one unambiguous correct option.
- Distractors must be plausible but clearly wrong.
- No two questions in this batch may test the same fact.

Respond with JSON only:
{
  "questions": [
    {
      "question_text": "...",
      "options": [
        {"label": "A", "text": "..."},
        {"label": "B", "text": "..."},
        {"label": "C", "text": "..."},
        {"label": "D", "text": "..."}
      ],
      "correct_label": "B",
      "explanation": "Why the correct option is correct...",
      "difficulty": "medium"
    }
  ]
}

difficulty must be one of: "easy", "medium", "hard"`)

	return sb.String()
}
