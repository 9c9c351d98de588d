package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/finsight/reportminer/internal/backend"
	"github.com/finsight/reportminer/internal/model"
)

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	// CallTimeout bounds a single backend completion call.
	CallTimeout time.Duration
	// ChunkConcurrency limits how many chunks are processed at once.
	ChunkConcurrency int
	// Verify enables the second additive round where each backend reviews
	// the combined first-round findings for its chunk.
	Verify bool
	// RateLimit paces backend calls across the whole orchestrator
	// (requests per second); 0 disables pacing.
	RateLimit float64
	// RateBurst is the limiter burst size when RateLimit is set.
	RateBurst int
}

const (
	defaultCallTimeout      = 30 * time.Second
	defaultChunkConcurrency = 4
)

// Orchestrator fans extraction prompts out to every configured backend and
// collects the normalized candidate records. Individual backend failures
// are logged and skipped; a chunk where every backend fails simply yields
// no candidates.
type Orchestrator struct {
	backends []backend.Backend
	limiter  *rate.Limiter
	opts     Options
}

// New creates an orchestrator over the given backends.
func New(backends []backend.Backend, opts Options) (*Orchestrator, error) {
	if len(backends) == 0 {
		return nil, eris.New("extract: at least one backend is required")
	}
	seen := make(map[string]bool, len(backends))
	for _, b := range backends {
		if seen[b.ID()] {
			return nil, eris.Errorf("extract: duplicate backend id %q", b.ID())
		}
		seen[b.ID()] = true
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.ChunkConcurrency <= 0 {
		opts.ChunkConcurrency = defaultChunkConcurrency
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Orchestrator{backends: backends, limiter: limiter, opts: opts}, nil
}

// ExtractAll runs every chunk through every backend and returns the
// combined candidate records in chunk order. It fails only on context
// cancellation; per-backend errors degrade to fewer candidates.
func (o *Orchestrator) ExtractAll(ctx context.Context, chunks []model.Chunk) ([]model.CandidateRecord, error) {
	perChunk := make([][]model.CandidateRecord, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.ChunkConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			recs, err := o.ExtractChunk(gCtx, chunk)
			if err != nil {
				return err
			}
			perChunk[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.CandidateRecord
	for _, recs := range perChunk {
		all = append(all, recs...)
	}
	return all, nil
}

// ExtractChunk runs the extract round (and the verify round when enabled)
// for one chunk across all backends.
func (o *Orchestrator) ExtractChunk(ctx context.Context, chunk model.Chunk) ([]model.CandidateRecord, error) {
	first, err := o.runRound(ctx, chunk, model.RoundExtract, backend.BuildExtractPrompt(chunk))
	if err != nil {
		return nil, err
	}
	if !o.opts.Verify {
		return first, nil
	}

	// Verify round is strictly additive: each backend reviews the combined
	// first-round findings and may contribute omissions or corrections as
	// new candidates. It never removes anything already found.
	second, err := o.runRound(ctx, chunk, model.RoundVerify, backend.BuildVerifyPrompt(chunk, first))
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

// runRound issues one prompt to every backend concurrently and collects
// candidates in fixed backend order so output is deterministic.
func (o *Orchestrator) runRound(ctx context.Context, chunk model.Chunk, round model.Round, prompt string) ([]model.CandidateRecord, error) {
	perBackend := make([][]model.CandidateRecord, len(o.backends))

	g, gCtx := errgroup.WithContext(ctx)
	for i, b := range o.backends {
		g.Go(func() error {
			recs, err := o.callBackend(gCtx, b, chunk, round, prompt)
			if err != nil {
				// A failed backend reduces corroboration, nothing more.
				zap.L().Warn("extract: backend call failed",
					zap.String("backend", b.ID()),
					zap.String("round", string(round)),
					zap.Int("chunk", chunk.Index),
					zap.Error(err),
				)
				return nil
			}
			perBackend[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: round canceled")
	}

	var out []model.CandidateRecord
	for _, recs := range perBackend {
		out = append(out, recs...)
	}
	return out, nil
}

func (o *Orchestrator) callBackend(ctx context.Context, b backend.Backend, chunk model.Chunk, round model.Round, prompt string) ([]model.CandidateRecord, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	raw, err := b.Complete(callCtx, prompt)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s completion", b.ID())
	}

	entries, err := backend.NormalizerFor(b.ID())(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s normalize reply", b.ID())
	}
	return backend.Candidates(entries, chunk, round, b.ID()), nil
}
