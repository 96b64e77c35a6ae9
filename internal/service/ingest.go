package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CorpusSource enumerates and reads the documents of a corpus.
type CorpusSource interface {
	Describe() string
	List(ctx context.Context) ([]domain.CorpusFile, error)
	Open(ctx context.Context, f domain.CorpusFile) ([]byte, error)
}

// TextExtractor converts a document to text.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document) (string, error)
}

// Embedder maps text to vectors of a fixed model and width.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// CollectionStore records the embedding identity of each collection.
type CollectionStore interface {
	Ensure(ctx context.Context, name, model string, dims int) (*domain.Collection, error)
	Get(ctx context.Context, name string) (*domain.Collection, error)
	Touch(ctx context.Context, name string) error
}

// IndexWriter is the write side of the vector index.
type IndexWriter interface {
	UpsertBatch(ctx context.Context, collection string, chunks []domain.Chunk) error
	PruneSource(ctx context.Context, collection, source string, keep int) (int64, error)
}

// IngestLocker grants the single-writer right for a collection.
type IngestLocker interface {
	TryAcquire(ctx context.Context, collection string) (func(), error)
}

// IngestConfig controls an ingestion run.
type IngestConfig struct {
	Collection string
	Chunk      ChunkParams
	Workers    int
	BatchSize  int
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Collection: "medical_docs",
		Chunk:      DefaultChunkParams(),
		Workers:    8,
		BatchSize:  256,
	}
}

// SkippedFile is a document that could not be read or extracted.
type SkippedFile struct {
	Name   string
	Reason string
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	RunID    string
	Corpus   string
	Files    int
	Indexed  int
	Skipped  []SkippedFile
	Chunks   int
	Batches  int
	Pruned   int64
	Duration time.Duration
}

// IngestService runs Extractor, Chunker, Embedder and index writes over a corpus.
type IngestService struct {
	extractor   TextExtractor
	embedder    Embedder
	collections CollectionStore
	index       IndexWriter
	locker      IngestLocker
	chunker     *Chunker
	cfg         IngestConfig
}

func NewIngestService(
	extractor TextExtractor,
	embedder Embedder,
	collections CollectionStore,
	index IndexWriter,
	locker IngestLocker,
	cfg IngestConfig,
) (*IngestService, error) {
	chunker, err := NewChunker(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultIngestConfig().Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIngestConfig().BatchSize
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultIngestConfig().Collection
	}
	return &IngestService{
		extractor:   extractor,
		embedder:    embedder,
		collections: collections,
		index:       index,
		locker:      locker,
		chunker:     chunker,
		cfg:         cfg,
	}, nil
}

// extracted is the outcome of reading one file; err marks a skipped file.
type extracted struct {
	file domain.CorpusFile
	text string
	err  error
}

// Ingest indexes every eligible document of corpus. Unreadable files are
// logged and skipped; an embedding or index write failure aborts the run.
// Re-running over an unchanged corpus rewrites the same ids.
func (s *IngestService) Ingest(ctx context.Context, corpus CorpusSource) (*IngestReport, error) {
	started := time.Now()
	report := &IngestReport{RunID: uuid.NewString(), Corpus: corpus.Describe()}

	ctx, span := telemetry.StartSpan(ctx, "ingest.run")
	span.Tag("collection", s.cfg.Collection).Tag("run_id", report.RunID)
	defer span.End()

	release, err := s.locker.TryAcquire(ctx, s.cfg.Collection)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.collections.Ensure(ctx, s.cfg.Collection, s.embedder.Model(), s.embedder.Dimensions()); err != nil {
		span.SetError(err)
		return nil, err
	}

	files, err := corpus.List(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to list corpus %s: %w", corpus.Describe(), err)
	}
	report.Files = len(files)
	log.Printf("ingest: run %s: %d eligible files in %s", report.RunID, len(files), corpus.Describe())

	docs, err := s.readAll(ctx, corpus, files)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]int, len(docs))
	pending := make([]domain.Chunk, 0, s.cfg.BatchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.writeBatch(ctx, pending); err != nil {
			return fmt.Errorf("batch %d: %w", report.Batches+1, err)
		}
		report.Batches++
		pending = pending[:0]
		return nil
	}

	for _, d := range docs {
		if d.err != nil {
			report.Skipped = append(report.Skipped, SkippedFile{Name: d.file.Name, Reason: d.err.Error()})
			continue
		}
		report.Indexed++

		n := 0
		for ordinal, text := range s.chunker.Chunks(d.text) {
			pending = append(pending, domain.Chunk{
				ID:      domain.ChunkRecordID(d.file.Name, ordinal),
				Text:    text,
				Source:  d.file.Name,
				ChunkID: ordinal,
			})
			n++
			if len(pending) == s.cfg.BatchSize {
				if err := flush(); err != nil {
					span.SetError(err)
					return nil, err
				}
			}
		}
		kept[d.file.Name] = n
		report.Chunks += n
	}
	if err := flush(); err != nil {
		span.SetError(err)
		return nil, err
	}

	for _, d := range docs {
		if d.err != nil {
			continue
		}
		removed, err := s.index.PruneSource(ctx, s.cfg.Collection, d.file.Name, kept[d.file.Name])
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to prune %s: %w", d.file.Name, err)
		}
		report.Pruned += removed
	}

	if err := s.collections.Touch(ctx, s.cfg.Collection); err != nil {
		log.Printf("ingest: failed to touch collection %s: %v", s.cfg.Collection, err)
	}

	report.Duration = time.Since(started)
	span.Data("chunks", report.Chunks).Data("skipped", len(report.Skipped))
	if len(report.Skipped) > 0 {
		telemetry.CaptureMessage(ctx, fmt.Sprintf("ingest run %s skipped %d files", report.RunID, len(report.Skipped)))
	}
	log.Printf("ingest: run %s: indexed %d chunks from %d files in %d batches (%d skipped, %d pruned) in %s",
		report.RunID, report.Chunks, report.Indexed, report.Batches, len(report.Skipped), report.Pruned, report.Duration.Round(time.Millisecond))

	return report, nil
}

// readAll reads and extracts files with bounded concurrency. Per-file failures
// are recorded on the result; only cancellation fails the whole call.
func (s *IngestService) readAll(ctx context.Context, corpus CorpusSource, files []domain.CorpusFile) ([]extracted, error) {
	out := make([]extracted, len(files))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = s.readOne(ctx, corpus, f)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IngestService) readOne(ctx context.Context, corpus CorpusSource, f domain.CorpusFile) extracted {
	res := extracted{file: f}

	content, err := corpus.Open(ctx, f)
	if err != nil {
		res.err = domain.ErrExtraction.WithCause(fmt.Errorf("%s: %w", f.Name, err))
	} else {
		format, _ := domain.FormatFor(f.Name)
		res.text, res.err = s.extractor.Extract(ctx, domain.Document{Name: f.Name, Format: format, Content: content})
	}

	if res.err != nil && !errors.Is(res.err, context.Canceled) {
		log.Printf("ingest: read failed for %s: %v", f.Name, res.err)
		telemetry.AddBreadcrumb(ctx, "ingest", "skipped "+f.Name)
	}
	return res
}

// writeBatch embeds a batch and upserts it once every vector is present.
func (s *IngestService) writeBatch(ctx context.Context, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("failed to embed: expected %d vectors, got %d", len(batch), len(vectors))
	}

	records := make([]domain.Chunk, len(batch))
	for i, c := range batch {
		c.Embedding = vectors[i]
		records[i] = c
	}

	if err := s.index.UpsertBatch(ctx, s.cfg.Collection, records); err != nil {
		return fmt.Errorf("failed to upsert: %w", err)
	}
	return nil
}
