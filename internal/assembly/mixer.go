package assembly

import (
	"encoding/binary"
	"math/rand"

	"github.com/google/uuid"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// Combine merges historical and generated candidates into a duplicate-free
// set of at most requested ids. Generated items are supplementary, so they
// are trimmed first when the pool runs over; a historical surplus is trimmed
// evenly at random. The set order is stable once assembled; the per-attempt
// shuffle happens later, when the attempt id exists.
func Combine(historical, generated []models.Question, requested int) *models.AssembledSet {
	seen := make(map[int64]bool, requested)

	historical = dedupe(historical, seen)
	if len(historical) > requested {
		historical = sampleRandom(historical, requested)
	}

	generated = dedupe(generated, seen)
	if room := requested - len(historical); len(generated) > room {
		generated = generated[:room]
	}

	ids := make([]int64, 0, len(historical)+len(generated))
	for _, q := range historical {
		ids = append(ids, q.ID)
	}
	for _, q := range generated {
		ids = append(ids, q.ID)
	}

	return &models.AssembledSet{
		QuestionIDs:     ids,
		HistoricalCount: len(historical),
		GeneratedCount:  len(generated),
		Degraded:        len(ids) < requested,
	}
}

// ShuffleForAttempt orders a set's question ids for one attempt. The seed
// comes from the attempt id, so review and grading see the same order on
// every read, but the order is unknowable before the attempt exists.
func ShuffleForAttempt(ids []int64, attemptID uuid.UUID) []int64 {
	seed := int64(binary.BigEndian.Uint64(attemptID[:8]))
	r := rand.New(rand.NewSource(seed))

	out := make([]int64, len(ids))
	copy(out, ids)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func dedupe(questions []models.Question, seen map[int64]bool) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	return out
}

func sampleRandom(questions []models.Question, n int) []models.Question {
	out := make([]models.Question, len(questions))
	copy(out, questions)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:n]
}
