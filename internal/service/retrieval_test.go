package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRetriever(maxTopK int) (*Retriever, *MockEmbedder, *MockCollectionStore, *MockIndex) {
	embedder := new(MockEmbedder)
	collections := new(MockCollectionStore)
	index := new(MockIndex)
	r := NewRetriever(embedder, collections, index, RetrieverConfig{Collection: "medical_docs", MaxTopK: maxTopK})
	return r, embedder, collections, index
}

func TestRetrieve_BlankQuery(t *testing.T) {
	r, embedder, collections, _ := newTestRetriever(50)

	for _, q := range []string{"", "   ", "\n\t"} {
		results, err := r.Retrieve(context.Background(), q, 3)
		assert.Nil(t, results)
		assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	}

	collections.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestRetrieve_ZeroTopKReturnsEmpty(t *testing.T) {
	r, embedder, _, index := newTestRetriever(50)

	results, err := r.Retrieve(context.Background(), "asthma", 0)

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_NegativeTopK(t *testing.T) {
	r, _, _, _ := newTestRetriever(50)

	_, err := r.Retrieve(context.Background(), "asthma", -1)

	assert.ErrorIs(t, err, domain.ErrInvalidTopK)
	assert.Equal(t, domain.ErrCodeInvalidQuery, domain.CodeOf(err))
}

func TestRetrieve_ClampsTopK(t *testing.T) {
	r, embedder, collections, index := newTestRetriever(2)
	vec := []float32{1, 0, 0}

	collections.On("Get", mock.Anything, "medical_docs").Return(testCollection("medical_docs"), nil)
	embedder.On("GenerateEmbedding", mock.Anything, "asthma").Return(vec, nil)
	index.On("Query", mock.Anything, "medical_docs", vec, 2).Return([]domain.RetrievalResult{}, nil).Once()

	_, err := r.Retrieve(context.Background(), "  asthma ", 10)

	require.NoError(t, err)
	index.AssertExpectations(t)
}

func TestRetrieve_EmbeddingSpaceMismatch(t *testing.T) {
	r, embedder, collections, _ := newTestRetriever(50)

	collections.On("Get", mock.Anything, "medical_docs").Return(&domain.Collection{
		Name:           "medical_docs",
		EmbeddingModel: "all-MiniLM-L6-v2",
		Dimensions:     384,
	}, nil)

	_, err := r.Retrieve(context.Background(), "asthma", 3)

	assert.ErrorIs(t, err, domain.ErrEmbeddingSpaceMismatch)
	assert.Contains(t, err.Error(), "all-MiniLM-L6-v2@384")
	embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestRetrieve_CollectionMissing(t *testing.T) {
	r, _, collections, _ := newTestRetriever(50)

	collections.On("Get", mock.Anything, "medical_docs").Return(nil, domain.ErrCollectionNotFound)

	_, err := r.Retrieve(context.Background(), "asthma", 3)

	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
	assert.Equal(t, domain.ErrCodeIndexUnavailable, domain.CodeOf(err))
}

func TestRetrieve_EmbeddingError(t *testing.T) {
	r, embedder, collections, index := newTestRetriever(50)

	collections.On("Get", mock.Anything, "medical_docs").Return(testCollection("medical_docs"), nil)
	embedder.On("GenerateEmbedding", mock.Anything, "asthma").Return(nil, errors.New("timeout"))

	_, err := r.Retrieve(context.Background(), "asthma", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
	index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieve_OrderedAndPrefixMonotonic(t *testing.T) {
	embedder := new(MockEmbedder)
	collections := new(MockCollectionStore)
	index := newMemoryIndex()
	r := NewRetriever(embedder, collections, index, RetrieverConfig{Collection: "medical_docs", MaxTopK: 50})

	texts := []string{
		"asthma asthma inhaler",
		"asthma and diabetes",
		"diabetes diabetes metformin",
		"migraine triptans",
		"asthma migraine",
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:        domain.ChunkRecordID("notes.txt", i),
			Text:      text,
			Source:    "notes.txt",
			ChunkID:   i,
			Embedding: keywordVector(text),
		}
	}
	require.NoError(t, index.UpsertBatch(context.Background(), "medical_docs", chunks))

	collections.On("Get", mock.Anything, "medical_docs").Return(testCollection("medical_docs"), nil)
	embedder.On("GenerateEmbedding", mock.Anything, "asthma").Return(keywordVector("asthma"), nil)

	var previous []domain.RetrievalResult
	for k := 1; k <= len(texts); k++ {
		results, err := r.Retrieve(context.Background(), "asthma", k)
		require.NoError(t, err)
		require.Len(t, results, k)

		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		}
		for i, prev := range previous {
			assert.Equal(t, prev.Chunk.ID, results[i].Chunk.ID)
		}
		previous = results
	}

	assert.Equal(t, "notes.txt_chunk0", previous[0].Chunk.ID)
	assert.InDelta(t, 1-previous[0].Distance, previous[0].Score, 1e-6)
}
