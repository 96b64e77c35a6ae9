package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, corpus service.CorpusSource) (*service.IngestReport, error) {
	args := m.Called(ctx, corpus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestReport), args.Error(1)
}

type stubCorpus struct{}

func (stubCorpus) Describe() string { return "./data" }

func (stubCorpus) List(ctx context.Context) ([]domain.CorpusFile, error) { return nil, nil }

func (stubCorpus) Open(ctx context.Context, f domain.CorpusFile) ([]byte, error) { return nil, nil }

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("boom"))

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_RunOnStart(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour).RunOnStart()

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()

	mockProcessor.AssertNumberOfCalls(t, "ProcessJobs", 1)
}

type slowProcessor struct {
	mu      sync.Mutex
	running int
	overlap bool
	calls   int
}

func (p *slowProcessor) ProcessJobs(ctx context.Context) error {
	p.mu.Lock()
	p.running++
	p.calls++
	if p.running > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(40 * time.Millisecond)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	return nil
}

func TestWorker_RunsDoNotOverlap(t *testing.T) {
	processor := &slowProcessor{}
	worker := NewWorker(processor, 5*time.Millisecond).RunOnStart()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	worker.Start(ctx)

	processor.mu.Lock()
	defer processor.mu.Unlock()
	assert.False(t, processor.overlap)
	assert.GreaterOrEqual(t, processor.calls, 2)
	assert.LessOrEqual(t, processor.calls, 5)
}

func TestWorker_StopBeforeStart(t *testing.T) {
	worker := NewWorker(new(MockJobProcessor), time.Hour)
	assert.NotPanics(t, worker.Stop)
}

func TestIngestWorker_ProcessJobs_Success(t *testing.T) {
	ingester := new(MockIngester)
	corpus := stubCorpus{}
	report := &service.IngestReport{RunID: "run-1", Chunks: 12}

	ingester.On("Ingest", mock.Anything, corpus).Return(report, nil)

	worker := NewIngestWorker(ingester, corpus)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	assert.Same(t, report, worker.LastReport())
	ingester.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_LockHeldIsSkipped(t *testing.T) {
	ingester := new(MockIngester)
	corpus := stubCorpus{}

	ingester.On("Ingest", mock.Anything, corpus).Return(nil, domain.ErrIngestionInProgress)

	worker := NewIngestWorker(ingester, corpus)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, worker.LastReport())
	assert.Equal(t, 0, worker.failures)
}

func TestIngestWorker_ProcessJobs_FailuresAreCounted(t *testing.T) {
	ingester := new(MockIngester)
	corpus := stubCorpus{}

	ingester.On("Ingest", mock.Anything, corpus).Return(nil, errors.New("index unavailable")).Times(MaxConsecutiveFailures)
	ingester.On("Ingest", mock.Anything, corpus).Return(&service.IngestReport{RunID: "run-2"}, nil).Once()

	worker := NewIngestWorker(ingester, corpus)

	for i := 1; i <= MaxConsecutiveFailures; i++ {
		err := worker.ProcessJobs(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index unavailable")
		assert.Equal(t, i, worker.failures)
	}

	require.NoError(t, worker.ProcessJobs(context.Background()))
	assert.Equal(t, 0, worker.failures)
	assert.Equal(t, "run-2", worker.LastReport().RunID)
}
