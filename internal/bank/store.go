package bank

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/generator"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// Store is the read path into the question bank. Historical questions are
// written by the ingestion pipeline, which this service does not own; the
// only write here is persisting accepted generated questions.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const questionColumns = `id, topic_id, question_text, correct_label, explanation,
	provenance, source_year, difficulty, is_valid, times_served, times_correct, created_at`

func (s *Store) TopicInfo(ctx context.Context, topicID int64) (*models.Topic, error) {
	var t models.Topic
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam, subject, name, created_at FROM topics WHERE id = $1`,
		topicID,
	).Scan(&t.ID, &t.Exam, &t.Subject, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("topic %d not found", topicID)
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// Candidates returns up to limit valid historical questions for the topic,
// excluding the given ids, in random order.
func (s *Store) Candidates(ctx context.Context, topicID int64, excludeIDs []int64, limit int) ([]models.Question, error) {
	if excludeIDs == nil {
		// A nil slice renders as SQL NULL and NOT (id = ANY(NULL)) filters
		// every row.
		excludeIDs = []int64{}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE topic_id = $1 AND is_valid AND provenance = $2
		   AND NOT (id = ANY($3))
		 ORDER BY random()
		 LIMIT $4`,
		topicID, models.ProvenanceHistorical, pq.Array(excludeIDs), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()
	return s.collectQuestions(ctx, rows)
}

// RelatedCandidates is the same-subject/same-exam fallback: historical
// questions from sibling topics, tried before declaring the bank exhausted.
func (s *Store) RelatedCandidates(ctx context.Context, topicID int64, excludeIDs []int64, limit int) ([]models.Question, error) {
	if excludeIDs == nil {
		excludeIDs = []int64{}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualifiedQuestionColumns("q")+`
		 FROM questions q
		 JOIN topics t ON t.id = q.topic_id
		 JOIN topics src ON src.id = $1
		 WHERE t.id <> $1 AND t.subject = src.subject AND t.exam = src.exam
		   AND q.is_valid AND q.provenance = $2
		   AND NOT (q.id = ANY($3))
		 ORDER BY random()
		 LIMIT $4`,
		topicID, models.ProvenanceHistorical, pq.Array(excludeIDs), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query related candidates: %w", err)
	}
	defer rows.Close()
	return s.collectQuestions(ctx, rows)
}

// TopicTexts returns the normalized text of every question in the topic,
// valid or not, for duplicate rejection of generated candidates.
func (s *Store) TopicTexts(ctx context.Context, topicID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_text FROM questions WHERE topic_id = $1`, topicID)
	if err != nil {
		return nil, fmt.Errorf("query topic texts: %w", err)
	}
	defer rows.Close()

	texts := make(map[string]bool)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan topic text: %w", err)
		}
		texts[generator.NormalizeText(text)] = true
	}
	return texts, rows.Err()
}

// ByIDs loads full questions, preserving the order of ids.
func (s *Store) ByIDs(ctx context.Context, ids []int64) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("query questions by id: %w", err)
	}
	defer rows.Close()

	loaded, err := s.collectQuestions(ctx, rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Question, len(loaded))
	for _, q := range loaded {
		byID[q.ID] = q
	}
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %d not found", id)
		}
		out = append(out, q)
	}
	return out, nil
}

// SaveGenerated persists accepted generated candidates as immutable
// questions with provenance "generated", returning them with assigned ids.
func (s *Store) SaveGenerated(ctx context.Context, topicID int64, cands []generator.Candidate) ([]models.Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	saved := make([]models.Question, 0, len(cands))
	for _, c := range cands {
		q := models.Question{
			TopicID:      topicID,
			QuestionText: c.QuestionText,
			Options:      c.Options,
			CorrectLabel: c.CorrectLabel,
			Explanation:  c.Explanation,
			Provenance:   models.ProvenanceGenerated,
			Difficulty:   generator.NormalizedDifficulty(c),
			IsValid:      true,
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO questions
			   (topic_id, question_text, correct_label, explanation, provenance, difficulty, is_valid)
			 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			 RETURNING id, created_at`,
			q.TopicID, q.QuestionText, q.CorrectLabel, q.Explanation, q.Provenance, q.Difficulty,
		).Scan(&q.ID, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert generated question: %w", err)
		}

		for _, o := range q.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO question_options (question_id, label, option_text) VALUES ($1, $2, $3)`,
				q.ID, o.Label, o.Text,
			); err != nil {
				return nil, fmt.Errorf("insert option %s for question %d: %w", o.Label, q.ID, err)
			}
		}
		saved = append(saved, q)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit generated questions: %w", err)
	}
	return saved, nil
}

// IncrementServed bumps the served counter for every id.
func (s *Store) IncrementServed(ctx context.Context, ids []int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE questions SET times_served = times_served + 1 WHERE id = ANY($1)`,
		pq.Array(ids))
	return err
}

// IncrementCorrect bumps the correct counter for every id.
func (s *Store) IncrementCorrect(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE questions SET times_correct = times_correct + 1 WHERE id = ANY($1)`,
		pq.Array(ids))
	return err
}

// ── Row Scanning ────────────────────────────────────────

func (s *Store) collectQuestions(ctx context.Context, rows *sql.Rows) ([]models.Question, error) {
	var questions []models.Question
	var ids []int64
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.TopicID, &q.QuestionText, &q.CorrectLabel, &q.Explanation,
			&q.Provenance, &q.SourceYear, &q.Difficulty, &q.IsValid,
			&q.TimesServed, &q.TimesCorrect, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	options, err := s.loadOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Options = options[questions[i].ID]
	}
	return questions, nil
}

func (s *Store) loadOptions(ctx context.Context, questionIDs []int64) (map[int64][]models.Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, label, option_text
		 FROM question_options
		 WHERE question_id = ANY($1)
		 ORDER BY question_id, label`,
		pq.Array(questionIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	options := make(map[int64][]models.Option, len(questionIDs))
	for rows.Next() {
		var qid int64
		var o models.Option
		if err := rows.Scan(&qid, &o.Label, &o.Text); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options[qid] = append(options[qid], o)
	}
	return options, rows.Err()
}

func qualifiedQuestionColumns(alias string) string {
	return alias + `.id, ` + alias + `.topic_id, ` + alias + `.question_text, ` +
		alias + `.correct_label, ` + alias + `.explanation, ` + alias + `.provenance, ` +
		alias + `.source_year, ` + alias + `.difficulty, ` + alias + `.is_valid, ` +
		alias + `.times_served, ` + alias + `.times_correct, ` + alias + `.created_at`
}
