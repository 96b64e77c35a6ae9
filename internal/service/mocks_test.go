package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/stretchr/testify/mock"
)

const (
	testModel = "test-embed"
	testDims  = 3
)

// MockEmbedder mocks the embedding provider. EmbedBatch may be stubbed with a
// func([]string) [][]float32 to produce one vector per input.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if fn, ok := args.Get(0).(func([]string) [][]float32); ok {
		return fn(texts), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) Model() string   { return testModel }
func (m *MockEmbedder) Dimensions() int { return testDims }

// unitVectors returns one constant vector per text.
func unitVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out
}

// MockCollectionStore mocks the collection identity repository
type MockCollectionStore struct {
	mock.Mock
}

func (m *MockCollectionStore) Ensure(ctx context.Context, name, model string, dims int) (*domain.Collection, error) {
	args := m.Called(ctx, name, model, dims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Collection), args.Error(1)
}

func (m *MockCollectionStore) Get(ctx context.Context, name string) (*domain.Collection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Collection), args.Error(1)
}

func (m *MockCollectionStore) Touch(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func testCollection(name string) *domain.Collection {
	return &domain.Collection{Name: name, EmbeddingModel: testModel, Dimensions: testDims}
}

// MockIndex mocks both sides of the vector index
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) UpsertBatch(ctx context.Context, collection string, chunks []domain.Chunk) error {
	args := m.Called(ctx, collection, chunks)
	return args.Error(0)
}

func (m *MockIndex) PruneSource(ctx context.Context, collection, source string, keep int) (int64, error) {
	args := m.Called(ctx, collection, source, keep)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIndex) Query(ctx context.Context, collection string, vec []float32, k int) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, collection, vec, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

// MockLocker mocks the single-writer lock
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryAcquire(ctx context.Context, collection string) (func(), error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockGenerator mocks the generation capability
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockSummarizer mocks the summarization capability
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

// fakeCorpus serves documents from memory. Names listed in failOpen return an
// error from Open.
type fakeCorpus struct {
	docs     map[string]string
	failOpen map[string]error
}

func (c *fakeCorpus) Describe() string { return "memory" }

func (c *fakeCorpus) List(ctx context.Context) ([]domain.CorpusFile, error) {
	names := make([]string, 0, len(c.docs)+len(c.failOpen))
	for name := range c.docs {
		names = append(names, name)
	}
	for name := range c.failOpen {
		if _, ok := c.docs[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	files := make([]domain.CorpusFile, len(names))
	for i, name := range names {
		files[i] = domain.CorpusFile{Name: name, Key: name, Size: int64(len(c.docs[name]))}
	}
	return files, nil
}

func (c *fakeCorpus) Open(ctx context.Context, f domain.CorpusFile) ([]byte, error) {
	if err, ok := c.failOpen[f.Name]; ok {
		return nil, err
	}
	return []byte(c.docs[f.Name]), nil
}

// passthroughExtractor returns document content as text.
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(ctx context.Context, doc domain.Document) (string, error) {
	return string(doc.Content), nil
}

// memoryIndex is an in-memory vector index with exact cosine ordering.
type memoryIndex struct {
	mu     sync.Mutex
	chunks map[string]domain.Chunk
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{chunks: make(map[string]domain.Chunk)}
}

func (m *memoryIndex) UpsertBatch(ctx context.Context, collection string, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *memoryIndex) PruneSource(ctx context.Context, collection, source string, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, c := range m.chunks {
		if c.Source == source && c.ChunkID >= keep {
			delete(m.chunks, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryIndex) Query(ctx context.Context, collection string, vec []float32, k int) ([]domain.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]domain.RetrievalResult, 0, len(m.chunks))
	for _, c := range m.chunks {
		d := cosineDistance(vec, c.Embedding)
		results = append(results, domain.RetrievalResult{Chunk: c, Distance: d, Score: 1 - d})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (m *memoryIndex) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// keywordVectors embeds text by counting three marker words, which gives
// stable, distinct directions for retrieval tests.
func keywordVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "asthma")) + 0.01,
		float32(strings.Count(lower, "diabetes")) + 0.01,
		float32(strings.Count(lower, "migraine")) + 0.01,
	}
}
