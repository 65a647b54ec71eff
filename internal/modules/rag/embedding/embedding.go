package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

var ErrEmptyVector = errors.New("embedding model returned an empty vector")

// Model is the part of the OpenAI client the embedder needs.
type Model interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Result is the outcome for the text at Index. Exactly one of Vector and Err is set.
type Result struct {
	Index  int
	Vector []float32
	Err    error
}

func (r Result) OK() bool { return r.Err == nil && len(r.Vector) > 0 }

type Config struct {
	Concurrency int
	RatePerSec  float64
	RateBurst   int
}

type Embedder struct {
	log         *logger.Logger
	model       Model
	concurrency int
	limiter     *rate.Limiter
}

func New(log *logger.Logger, model Model, cfg Config) (*Embedder, error) {
	if log == nil || model == nil {
		return nil, fmt.Errorf("embedding: missing deps")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.Concurrency
	}
	return &Embedder{
		log:         log.With("service", "Embedder"),
		model:       model,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, cfg.RateBurst),
	}, nil
}

// EmbedAll issues one request per text and returns one Result per input at
// the input's position. Failures are logged and counted, never returned.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.embedOne(ctx, text)
			results[i] = Result{Index: i, Vector: vec, Err: err}
			if err != nil {
				e.log.Warn("embedding failed", "index", i, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Embed embeds a single text (used for queries).
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, text)
}

func (e *Embedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		observability.Current().IncEmbedding("error")
		return nil, err
	}
	vecs, err := e.model.Embed(ctx, []string{text})
	if err != nil {
		observability.Current().IncEmbedding("error")
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		observability.Current().IncEmbedding("empty")
		return nil, ErrEmptyVector
	}
	observability.Current().IncEmbedding("ok")
	return vecs[0], nil
}

// Vectors keeps only the successful results, each still carrying its Index.
func Vectors(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}
