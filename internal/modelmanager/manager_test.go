package modelmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ninedomain/loreengine/internal/engineerr"
	"github.com/ninedomain/loreengine/internal/models"
	"github.com/ninedomain/loreengine/internal/observability"
	"github.com/ninedomain/loreengine/internal/provider"
	"github.com/ninedomain/loreengine/internal/router"
	"github.com/ninedomain/loreengine/internal/semanticcache"
	"github.com/ninedomain/loreengine/internal/vectorstore"
	"github.com/ninedomain/loreengine/pkg/domain"
)

// sharedMetrics is constructed once: observability.NewMetrics registers
// its collectors with the default Prometheus registry, which panics on a
// second registration within the same test binary.
var sharedMetrics = observability.NewMetrics()

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Output: nil})
}

func testTracer() *observability.Tracer {
	t, _ := observability.NewTracer(observability.TraceConfig{ServiceName: "test"})
	return t
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}

func (f *fakeEmbedder) Name() string         { return "fake" }
func (f *fakeEmbedder) ModelName() string    { return "fake-embed-v1" }
func (f *fakeEmbedder) Dimension() int       { return len(f.vec) }
func (f *fakeEmbedder) MaxBatchSize() int    { return 100 }

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	failN   int // number of leading calls that fail
	failErr error
}

func (f *fakeCompleter) Name() string      { return "fake" }
func (f *fakeCompleter) Models() []string  { return []string{"fake-model"} }

func (f *fakeCompleter) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failN {
		return provider.Response{}, f.failErr
	}
	return provider.Response{Text: "hello there", Model: req.Model, InputTokens: 10, OutputTokens: 5}, nil
}

type fakeStore struct {
	vectorstore.Store
	matches []vectorstore.ScoredEmbedding
	logged  []*domain.SearchLog
}

func (s *fakeStore) SearchSimilarContent(ctx context.Context, query []float32, opts vectorstore.SearchOptions) ([]vectorstore.ScoredEmbedding, error) {
	return s.matches, nil
}

func (s *fakeStore) LogSearch(ctx context.Context, log *domain.SearchLog) error {
	s.logged = append(s.logged, log)
	return nil
}

type fakeLimiter struct {
	reconciled []string
}

func (f *fakeLimiter) Reconcile(modelID string, estimatedTokens, actualTokens int) {
	f.reconciled = append(f.reconciled, modelID)
}

func newTestCatalog(id string) *models.Catalog {
	c := models.NewCatalog()
	c.Register(&models.Model{
		ID:            id,
		Provider:      models.ProviderAnthropic,
		Tier:          models.TierStandard,
		ContextWindow: 100000,
		Priority:      1,
	})
	return c
}

// newTestCatalogPair registers two models on the same provider, so a
// failure that marks one unavailable still leaves the other eligible for
// the next Select in a retry loop.
func newTestCatalogPair() *models.Catalog {
	c := models.NewCatalog()
	c.Register(&models.Model{ID: "fake-model-a", Provider: models.ProviderAnthropic, Tier: models.TierStandard, ContextWindow: 100000, Priority: 1})
	c.Register(&models.Model{ID: "fake-model-b", Provider: models.ProviderAnthropic, Tier: models.TierStandard, ContextWindow: 100000, Priority: 1})
	return c
}

func newTestRouter(catalog *models.Catalog, completer provider.Completer) *router.Router {
	return router.New(catalog, map[models.Provider]provider.Completer{models.ProviderAnthropic: completer}, router.Config{})
}

func TestComplete_CacheHitShortCircuits(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	completer := &fakeCompleter{}
	catalog := newTestCatalog("fake-model")
	r := newTestRouter(catalog, completer)
	cache := semanticcache.New(semanticcache.Options{})

	mgr := New(embedder, r, &fakeStore{}, cache, nil, Config{}, testLogger(), sharedMetrics, testTracer())

	req := provider.Request{Messages: []provider.Message{{Role: "user", Content: "what is a law chain"}}}
	ctx := context.Background()

	cache.Put(ctx, promptKey(req), embedder.vec, map[string]any{"text": "cached answer"}, map[string]any{"model_used": "fake-model"}, time.Minute, 0.9)

	result, err := mgr.Complete(ctx, req, CompleteOptions{UseCache: true})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !result.Cached {
		t.Error("expected cached result")
	}
	if result.Content != "cached answer" {
		t.Errorf("Content = %q, want %q", result.Content, "cached answer")
	}
	if completer.calls != 0 {
		t.Errorf("completer should not have been called on cache hit, calls=%d", completer.calls)
	}
}

func TestComplete_CallsProviderOnCacheMiss(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	completer := &fakeCompleter{}
	catalog := newTestCatalog("fake-model")
	r := newTestRouter(catalog, completer)
	cache := semanticcache.New(semanticcache.Options{})
	limiter := &fakeLimiter{}

	mgr := New(embedder, r, &fakeStore{}, cache, limiter, Config{}, testLogger(), sharedMetrics, testTracer())

	req := provider.Request{Messages: []provider.Message{{Role: "user", Content: "describe the fire chain"}}}
	result, err := mgr.Complete(context.Background(), req, CompleteOptions{UseCache: true})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Content != "hello there" {
		t.Errorf("Content = %q, want provider response", result.Content)
	}
	if result.Cached {
		t.Error("first call should not be cached")
	}
	if completer.calls != 1 {
		t.Errorf("completer.calls = %d, want 1", completer.calls)
	}
	if len(limiter.reconciled) != 1 {
		t.Errorf("expected one reconcile call, got %d", len(limiter.reconciled))
	}

	if cache.Size() != 1 {
		t.Errorf("expected Put to populate cache, size=%d", cache.Size())
	}
}

func TestComplete_RetriesOnRetryableFailureThenSucceeds(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	completer := &fakeCompleter{failN: 1, failErr: engineerr.ProviderUnavailableError("fake", errors.New("503"))}
	catalog := newTestCatalogPair()
	r := newTestRouter(catalog, completer)

	mgr := New(embedder, r, &fakeStore{}, nil, nil, Config{MaxRetries: 3}, testLogger(), sharedMetrics, testTracer())

	req := provider.Request{Messages: []provider.Message{{Role: "user", Content: "hi"}}}
	result, err := mgr.Complete(context.Background(), req, CompleteOptions{})
	if err != nil {
		t.Fatalf("expected eventual success, got error: %v", err)
	}
	if result.Content != "hello there" {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestComplete_FatalErrorAbortsImmediately(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	completer := &fakeCompleter{failN: 10, failErr: engineerr.InvalidRequestError("bad prompt")}
	catalog := newTestCatalog("fake-model")
	r := newTestRouter(catalog, completer)

	mgr := New(embedder, r, &fakeStore{}, nil, nil, Config{MaxRetries: 5}, testLogger(), sharedMetrics, testTracer())

	req := provider.Request{Messages: []provider.Message{{Role: "user", Content: "hi"}}}
	_, err := mgr.Complete(context.Background(), req, CompleteOptions{})
	if err == nil {
		t.Fatal("expected fatal error to abort")
	}
	if completer.calls != 1 {
		t.Errorf("fatal error should not retry, calls=%d", completer.calls)
	}
}

func TestEmbed_ReturnsVectorsForEachText(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	catalog := newTestCatalog("fake-model")
	r := newTestRouter(catalog, &fakeCompleter{})

	mgr := New(embedder, r, &fakeStore{}, nil, nil, Config{}, testLogger(), sharedMetrics, testTracer())

	result, err := mgr.Embed(context.Background(), []string{"a", "b"}, "")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(result.Vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(result.Vectors))
	}
}

func TestSearch_EmbedsAndQueriesVectorStore(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	catalog := newTestCatalog("fake-model")
	r := newTestRouter(catalog, &fakeCompleter{})
	store := &fakeStore{matches: []vectorstore.ScoredEmbedding{{Record: domain.EmbeddingRecord{RecordID: "r1"}, Score: 0.95}}}

	mgr := New(embedder, r, store, nil, nil, Config{}, testLogger(), sharedMetrics, testTracer())

	result, err := mgr.Search(context.Background(), "fire law chain", vectorstore.SearchOptions{K: 5})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	if len(store.logged) != 1 {
		t.Errorf("expected search to be logged, logged=%d", len(store.logged))
	}
}
