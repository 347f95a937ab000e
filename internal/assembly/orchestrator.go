package assembly

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/generator"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/models"
)

// ErrInsufficientQuestions is the one user-visible hard failure: the topic
// and its related topics lack historical questions and generation produced
// nothing either.
var ErrInsufficientQuestions = fmt.Errorf("no questions available for this topic or any related topic")

// BankReader is the read path into the persisted question bank, plus the
// single write the orchestrator owns: persisting accepted generated output.
type BankReader interface {
	TopicInfo(ctx context.Context, topicID int64) (*models.Topic, error)
	Candidates(ctx context.Context, topicID int64, excludeIDs []int64, limit int) ([]models.Question, error)
	RelatedCandidates(ctx context.Context, topicID int64, excludeIDs []int64, limit int) ([]models.Question, error)
	TopicTexts(ctx context.Context, topicID int64) (map[string]bool, error)
	SaveGenerated(ctx context.Context, topicID int64, cands []generator.Candidate) ([]models.Question, error)
}

// HistoryReader supplies the ids a user has already seen for a topic,
// bounded to the retention window.
type HistoryReader interface {
	Seen(ctx context.Context, userID, topicID int64) ([]int64, error)
}

// Config bounds the orchestrator's external fan-out. The batch budget is
// ceil(quota/BatchSize) + BatchSlack, a hard bound with no retry multiplier.
type Config struct {
	BatchSize      int
	BatchSlack     int
	PerCallTimeout time.Duration
}

// Orchestrator assembles one exact-count question set per request, mixing
// historical bank questions with freshly generated ones.
type Orchestrator struct {
	bank    BankReader
	history HistoryReader
	chain   *generator.Chain
	cfg     Config
}

func NewOrchestrator(bank BankReader, history HistoryReader, chain *generator.Chain, cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.BatchSlack < 0 {
		cfg.BatchSlack = 0
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 5 * time.Second
	}
	return &Orchestrator{bank: bank, history: history, chain: chain, cfg: cfg}
}

// Assemble runs the full pipeline under the deadline carried by ctx.
// Degradation (short set, broken ratio) is reported on the set, not as an
// error; only total exhaustion of every source returns ErrInsufficientQuestions.
func (o *Orchestrator) Assemble(ctx context.Context, req models.GenerationRequest) (*models.AssembledSet, error) {
	start := time.Now()

	generatedQuota := int(math.Round(float64(req.Count) * (1 - req.HistoricalRatio)))
	if generatedQuota < 0 {
		generatedQuota = 0
	}
	if generatedQuota > req.Count {
		generatedQuota = req.Count
	}
	historicalQuota := req.Count - generatedQuota

	pool, err := o.historicalPool(ctx, req)
	if err != nil {
		return nil, err
	}

	historical := pool
	if len(historical) > historicalQuota {
		historical = historical[:historicalQuota]
	}
	reserve := pool[len(historical):]

	// The exact count beats the exact ratio: a historical shortfall is
	// pushed onto the generation quota.
	if shortfall := historicalQuota - len(historical); shortfall > 0 {
		generatedQuota += shortfall
	}

	var generated []models.Question
	var degradedReason string
	calls, rejected := 0, 0
	backend := ""

	if generatedQuota > 0 && o.chain != nil {
		generated, calls, rejected, backend, degradedReason = o.generate(ctx, req, historical, generatedQuota)
	} else if generatedQuota > 0 {
		degradedReason = models.DegradedProviderFailure
	}

	// Pad unmet quota from the historical reserve, bypassing the ratio.
	if missing := req.Count - len(historical) - len(generated); missing > 0 {
		pad := reserve
		if len(pad) > missing {
			pad = pad[:missing]
		}
		historical = append(historical, pad...)
	}

	if len(historical)+len(generated) == 0 {
		return nil, ErrInsufficientQuestions
	}

	set := Combine(historical, generated, req.Count)
	set.TopicID = req.TopicID
	set.ProviderCalls = calls
	set.CandidatesRejected = rejected
	set.Backend = backend
	set.GenerationTimeMs = time.Since(start).Milliseconds()
	set.AssembledAt = time.Now().UTC()

	// A set that met the count by padding over a failed generation quota
	// still broke the requested ratio, and says so.
	if degradedReason != "" {
		set.Degraded = true
	}
	if set.Degraded && set.DegradedReason == "" {
		if degradedReason == "" {
			degradedReason = models.DegradedInsufficientBank
		}
		set.DegradedReason = degradedReason
	}

	return set, nil
}

// historicalPool pulls candidates for the topic, falls back to related
// topics, and relaxes the seen-id exclusion when it would leave the pool
// below the requested count.
func (o *Orchestrator) historicalPool(ctx context.Context, req models.GenerationRequest) ([]models.Question, error) {
	// Fetch twice the requested count so degraded runs can pad from reserve.
	limit := req.Count * 2

	var seen []int64
	if o.history != nil {
		ids, err := o.history.Seen(ctx, req.UserID, req.TopicID)
		if err != nil {
			log.Printf("WARN: history lookup failed for user=%d topic=%d: %v", req.UserID, req.TopicID, err)
		} else {
			seen = ids
		}
	}

	pool, err := o.bank.Candidates(ctx, req.TopicID, seen, limit)
	if err != nil {
		return nil, fmt.Errorf("bank candidates: %w", err)
	}

	if len(pool) < limit {
		exclude := append(idsOf(pool), seen...)
		related, err := o.bank.RelatedCandidates(ctx, req.TopicID, exclude, limit-len(pool))
		if err != nil {
			log.Printf("WARN: related-topic fallback failed for topic=%d: %v", req.TopicID, err)
		} else {
			pool = append(pool, related...)
		}
	}

	// Exclusion would starve the request: permit repeats of seen questions
	// rather than failing a small topic.
	if len(pool) < req.Count && len(seen) > 0 {
		log.Printf("[assemble] relaxing seen-exclusion for user=%d topic=%d (pool=%d, need=%d)",
			req.UserID, req.TopicID, len(pool), req.Count)
		relaxed, err := o.bank.Candidates(ctx, req.TopicID, nil, limit)
		if err != nil {
			return nil, fmt.Errorf("bank candidates (relaxed): %w", err)
		}
		pool = mergeByID(pool, relaxed)
		if len(pool) < limit {
			related, err := o.bank.RelatedCandidates(ctx, req.TopicID, idsOf(pool), limit-len(pool))
			if err == nil {
				pool = append(pool, related...)
			}
		}
	}

	return pool, nil
}

// generate drives the provider chain in fixed-size batches until the quota
// is met, the batch budget is spent, the chain is exhausted, or the overall
// deadline fires.
func (o *Orchestrator) generate(ctx context.Context, req models.GenerationRequest, exemplarPool []models.Question, quota int) (accepted []models.Question, calls, rejected int, backend, degradedReason string) {
	topic, err := o.bank.TopicInfo(ctx, req.TopicID)
	if err != nil {
		log.Printf("WARN: topic lookup failed for topic=%d: %v", req.TopicID, err)
		return nil, 0, 0, "", models.DegradedProviderFailure
	}

	bankTexts, err := o.bank.TopicTexts(ctx, req.TopicID)
	if err != nil {
		log.Printf("WARN: topic text lookup failed for topic=%d: %v", req.TopicID, err)
		bankTexts = nil
	}
	acceptor := generator.NewAcceptor(bankTexts)

	bundle := generator.PromptBundle{
		Topic:     topic.Name,
		Subject:   topic.Subject,
		ExamStyle: fmt.Sprintf("%s: one correct option out of four, factual recall and light reasoning", topic.Exam),
		Exemplars: exemplarPool,
		BatchSize: o.cfg.BatchSize,
	}

	run := o.chain.Run()
	backend = run.ActiveBackend()

	// Hard fan-out bound. Never a retry multiplier: a 10-question quota at
	// batch size 3 issues at most ceil(10/3)+slack batches.
	maxBatches := (quota+o.cfg.BatchSize-1)/o.cfg.BatchSize + o.cfg.BatchSlack

	var cands []generator.Candidate
	for batch := 0; batch < maxBatches && len(cands) < quota; batch++ {
		if ctx.Err() != nil {
			degradedReason = models.DegradedDeadlineExceeded
			break
		}
		if run.Exhausted() {
			degradedReason = models.DegradedProviderFailure
			break
		}

		out, err := o.callBackend(ctx, run, bundle)
		if err != nil {
			if ctx.Err() != nil {
				degradedReason = models.DegradedDeadlineExceeded
			} else {
				degradedReason = models.DegradedProviderFailure
			}
			log.Printf("WARN: generation batch %d failed for topic=%d: %v", batch+1, req.TopicID, err)
			continue
		}

		for _, c := range out {
			if len(cands) >= quota {
				break
			}
			if ok, reason := acceptor.Accept(c); !ok {
				rejected++
				log.Printf("[assemble] candidate rejected for topic=%d: %s", req.TopicID, reason)
				continue
			}
			cands = append(cands, c)
		}
	}
	calls = run.Calls()
	if b := run.ActiveBackend(); b != "" {
		backend = b
	}
	if label, skewed := acceptor.SkewedLabel(); skewed {
		log.Printf("WARN: correct-answer distribution skewed toward %s for topic=%d (%d candidates)",
			label, req.TopicID, len(cands))
	}

	// The batch budget can also be spent on calls that succeeded but whose
	// candidates were all rejected; an unmet quota breaks the requested mix
	// no matter how it went unmet.
	if len(cands) < quota && degradedReason == "" {
		degradedReason = models.DegradedProviderFailure
	}

	if len(cands) == 0 {
		return nil, calls, rejected, backend, degradedReason
	}
	if len(cands) >= quota {
		degradedReason = ""
	}

	// Accepted candidates become persisted questions with provenance
	// "generated". Persist on a detached context so a caller hang-up after
	// the work is done does not lose the questions.
	saved, err := o.bank.SaveGenerated(context.WithoutCancel(ctx), req.TopicID, cands)
	if err != nil {
		log.Printf("WARN: persisting %d generated questions failed for topic=%d: %v", len(cands), req.TopicID, err)
		return nil, calls, rejected, backend, models.DegradedProviderFailure
	}
	return saved, calls, rejected, backend, degradedReason
}

// callBackend runs one batch call under its own per-call timeout, detached
// from the overall deadline. When the overall deadline fires mid-call the
// call is abandoned for scheduling, but its result is still polled briefly
// and accepted opportunistically if it lands in time.
func (o *Orchestrator) callBackend(ctx context.Context, run *generator.ChainRun, bundle generator.PromptBundle) ([]generator.Candidate, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PerCallTimeout)

	type result struct {
		cands []generator.Candidate
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer cancel()
		cands, err := run.Generate(callCtx, bundle)
		ch <- result{cands, err}
	}()

	select {
	case r := <-ch:
		return r.cands, r.err
	case <-ctx.Done():
		select {
		case r := <-ch:
			return r.cands, r.err
		case <-time.After(50 * time.Millisecond):
			return nil, ctx.Err()
		}
	}
}

func idsOf(questions []models.Question) []int64 {
	ids := make([]int64, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}

func mergeByID(a, b []models.Question) []models.Question {
	have := make(map[int64]bool, len(a))
	for _, q := range a {
		have[q.ID] = true
	}
	out := a
	for _, q := range b {
		if !have[q.ID] {
			have[q.ID] = true
			out = append(out, q)
		}
	}
	return out
}
