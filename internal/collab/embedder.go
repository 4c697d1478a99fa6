package collab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/korrelate/ingestcore/internal/config"
	"github.com/korrelate/ingestcore/internal/model"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	googleoption "google.golang.org/api/option"
)

// EmbedMode reports whether an Embedder also produces a sparse representation.
type EmbedMode string

const (
	ModeDense  EmbedMode = "dense"
	ModeHybrid EmbedMode = "hybrid"
)

// Embedder produces dense (and optionally sparse) vectors for a batch of texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Mode() EmbedMode
	Dimension() int
}

// breakerWrapper adds a circuit breaker and an outbound rate limiter around
// any Embedder, tripping on repeated transient failures the way the
// teacher's Gemini client guards its own API calls.
type breakerWrapper struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps inner with a circuit breaker and an RPM limiter.
func NewRateLimitedEmbedder(inner Embedder, name string, requestsPerMinute int) Embedder {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &breakerWrapper{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
	}
}

func (b *breakerWrapper) Mode() EmbedMode  { return b.inner.Mode() }
func (b *breakerWrapper) Dimension() int   { return b.inner.Dimension() }

func (b *breakerWrapper) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := b.breaker.Execute(func() (interface{}, error) {
		vecs, err := b.inner.Embed(ctx, texts)
		if err != nil && isTransient(err) {
			// one internal retry on transient network errors (open question decision)
			vecs, err = b.inner.Embed(ctx, texts)
		}
		return vecs, err
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNRESET)
}

// SparseEmbedder is satisfied by an Embedder whose Mode() reports ModeHybrid:
// it produces the lexical sparse vector to store alongside the dense one
// (spec's "if hybrid, also store sparse embedding").
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string) ([][]model.SparseTerm, error)
}

// hybridTermEmbedder wraps a dense Embedder with a hashed term-frequency
// sparse vector, so EMBEDDINGS_HYBRID=true gives the chunk storage path in
// FastLaneProcessor and CallbackReconciler something real to populate
// Chunk.SparseEmbedding with, rather than leaving
// it permanently unreachable. Query-time lexical scoring is unaffected: it
// stays on internal/search/bm25.go, which scores chunk content directly.
type hybridTermEmbedder struct {
	Embedder
	sparseDim int
}

// NewHybridTermEmbedder wraps inner so Mode() reports ModeHybrid and
// EmbedSparse is available.
func NewHybridTermEmbedder(inner Embedder, sparseDim int) Embedder {
	if sparseDim <= 0 {
		sparseDim = 10000
	}
	return &hybridTermEmbedder{Embedder: inner, sparseDim: sparseDim}
}

func (h *hybridTermEmbedder) Mode() EmbedMode { return ModeHybrid }

func (h *hybridTermEmbedder) EmbedSparse(ctx context.Context, texts []string) ([][]model.SparseTerm, error) {
	out := make([][]model.SparseTerm, len(texts))
	for i, text := range texts {
		out[i] = hashedTermFrequencies(text, h.sparseDim)
	}
	return out, nil
}

// hashedTermFrequencies tokenizes text on non-letter/digit runs, lowercases,
// and hashes each token into [0, dim) via the FNV-1a hash already used for
// Qdrant point IDs, accumulating a term-frequency weight per bucket.
func hashedTermFrequencies(text string, dim int) []model.SparseTerm {
	counts := make(map[int]float64)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		idx := int(hashToUint64(tok) % uint64(dim))
		counts[idx]++
	}
	terms := make([]model.SparseTerm, 0, len(counts))
	for idx, count := range counts {
		terms = append(terms, model.SparseTerm{Index: idx, Value: count})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Index < terms[j].Index })
	return terms
}

// GoogleEmbedder is the default Embedder, backed by Gemini's text-embedding model.
type GoogleEmbedder struct {
	client    *genai.Client
	modelID   string
	dimension int
}

func NewGoogleEmbedder(ctx context.Context, cfg *config.Config) (*GoogleEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GoogleEmbedder{client: client, modelID: cfg.GoogleEmbeddingsModel, dimension: cfg.EmbeddingDimension}, nil
}

func (g *GoogleEmbedder) Mode() EmbedMode { return ModeDense }
func (g *GoogleEmbedder) Dimension() int  { return g.dimension }

func (g *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := g.client.EmbeddingModel(g.modelID)
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		out = append(out, resp.Embedding.Values)
	}
	return out, nil
}

func (g *GoogleEmbedder) Close() error { return g.client.Close() }

// OpenAIEmbedder is the alternate Embedder provider, selected via EMBEDDINGS_PROVIDER=openai.
type OpenAIEmbedder struct {
	client    openai.Client
	modelID   string
	dimension int
}

func NewOpenAIEmbedder(cfg *config.Config) (*OpenAIEmbedder, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
	}
	client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
	return &OpenAIEmbedder{client: client, modelID: cfg.OpenAIEmbeddingsModel, dimension: cfg.EmbeddingDimension}, nil
}

func (o *OpenAIEmbedder) Mode() EmbedMode { return ModeDense }
func (o *OpenAIEmbedder) Dimension() int  { return o.dimension }

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: o.modelID,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// NewEmbedder selects and constructs the configured Embedder provider.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	var embedder Embedder
	switch cfg.EmbeddingsProvider {
	case "openai":
		inner, err := NewOpenAIEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		embedder = NewRateLimitedEmbedder(inner, "OpenAIEmbeddings", 500)
	case "google", "":
		inner, err := NewGoogleEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		embedder = NewRateLimitedEmbedder(inner, "GoogleEmbeddings", 60)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
	if cfg.EmbeddingsHybrid {
		embedder = NewHybridTermEmbedder(embedder, cfg.SparseVectorDimension)
	}
	return embedder, nil
}
