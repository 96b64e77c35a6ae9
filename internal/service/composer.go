package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// ExtractiveSeparator joins retrieved chunks in extractive mode.
	ExtractiveSeparator = "\n\n---\n\n"

	maxSummarized      = 5
	summaryInputChars  = 400
	summaryMinWords    = 60
	summaryExcerptChar = 150
)

// Generator produces an answer from a grounding prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses one retrieved passage.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ComposerConfig controls answer composition.
type ComposerConfig struct {
	DefaultMode  domain.AnswerMode
	Summarize    bool
	Budget       time.Duration
	SafetyMargin time.Duration
	MaxWords     int
	MaxContexts  int
}

// DefaultComposerConfig returns the default composer configuration.
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		DefaultMode:  domain.AnswerModeExtractive,
		Summarize:    true,
		Budget:       60 * time.Second,
		SafetyMargin: 10 * time.Second,
		MaxWords:     40,
		MaxContexts:  3,
	}
}

// ComposeInput is one composition request. Zero Mode and nil Summarize fall
// back to the configured defaults; Start is when the request arrived.
type ComposeInput struct {
	Query     string
	Results   []domain.RetrievalResult
	Mode      domain.AnswerMode
	Summarize *bool
	Start     time.Time
}

// Composer turns retrieved chunks into an answer, either by concatenating
// them or by asking a generation capability. A nil generator makes
// generative mode fail with ErrGenerationUnavailable rather than degrade.
type Composer struct {
	generator  Generator
	summarizer Summarizer
	cfg        ComposerConfig
	now        func() time.Time
}

func NewComposer(generator Generator, summarizer Summarizer, cfg ComposerConfig) *Composer {
	defaults := DefaultComposerConfig()
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = defaults.DefaultMode
	}
	if cfg.Budget <= 0 {
		cfg.Budget = defaults.Budget
	}
	if cfg.SafetyMargin < 0 || cfg.SafetyMargin >= cfg.Budget {
		cfg.SafetyMargin = 0
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = defaults.MaxWords
	}
	if cfg.MaxContexts <= 0 {
		cfg.MaxContexts = defaults.MaxContexts
	}
	return &Composer{
		generator:  generator,
		summarizer: summarizer,
		cfg:        cfg,
		now:        time.Now,
	}
}

// GenerationAvailable reports whether generative mode can be served.
func (c *Composer) GenerationAvailable() bool {
	return c.generator != nil
}

func (c *Composer) DefaultMode() domain.AnswerMode {
	return c.cfg.DefaultMode
}

func (c *Composer) Compose(ctx context.Context, in ComposeInput) (*domain.Answer, error) {
	mode := in.Mode
	if mode == "" {
		mode = c.cfg.DefaultMode
	}
	if in.Start.IsZero() {
		in.Start = c.now()
	}

	switch mode {
	case domain.AnswerModeExtractive:
		return c.extractive(in), nil
	case domain.AnswerModeGenerative:
		return c.generative(ctx, in)
	default:
		return nil, domain.ErrInvalidMode
	}
}

func (c *Composer) extractive(in ComposeInput) *domain.Answer {
	texts := make([]string, len(in.Results))
	sources := make([]string, len(in.Results))
	for i, r := range in.Results {
		texts[i] = r.Chunk.Text
		sources[i] = r.Chunk.SourceName()
	}
	return &domain.Answer{
		Query:    in.Query,
		Answer:   strings.Join(texts, ExtractiveSeparator),
		Sources:  sources,
		Contexts: texts,
		Mode:     domain.AnswerModeExtractive,
	}
}

// groundingContext is a passage placed in the prompt with its provenance.
type groundingContext struct {
	source  string
	chunkID int
	text    string
}

func (c *Composer) generative(ctx context.Context, in ComposeInput) (*domain.Answer, error) {
	if c.generator == nil {
		return nil, domain.ErrGenerationUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, "composer.generate")
	defer span.End()

	summarize := c.cfg.Summarize
	if in.Summarize != nil {
		summarize = *in.Summarize
	}

	var contexts []groundingContext
	if summarize {
		contexts = c.summarizeAll(ctx, in.Results, in.Start)
	} else {
		for _, r := range in.Results {
			contexts = append(contexts, groundingContext{source: r.Chunk.SourceName(), chunkID: r.Chunk.ChunkID, text: r.Chunk.Text})
		}
	}

	kept := make([]groundingContext, 0, c.cfg.MaxContexts)
	for _, gc := range contexts {
		if strings.TrimSpace(gc.text) == "" {
			continue
		}
		kept = append(kept, gc)
		if len(kept) == c.cfg.MaxContexts {
			break
		}
	}

	span.Data("contexts", len(kept))
	genCtx, cancel := context.WithDeadline(ctx, in.Start.Add(c.cfg.Budget))
	defer cancel()

	raw, err := c.generator.Generate(genCtx, BuildPrompt(in.Query, kept))
	if err != nil {
		span.SetError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrUpstreamGeneration.WithCause(fmt.Errorf("answer budget of %s exhausted: %w", c.cfg.Budget, err))
		}
		return nil, domain.ErrUpstreamGeneration.WithCause(err)
	}

	answer := &domain.Answer{
		Query:    in.Query,
		Answer:   TruncateWords(raw, c.cfg.MaxWords),
		Sources:  make([]string, len(kept)),
		Contexts: make([]string, len(kept)),
		Mode:     domain.AnswerModeGenerative,
	}
	for i, gc := range kept {
		answer.Sources[i] = gc.source
		answer.Contexts[i] = gc.text
	}
	return answer, nil
}

// summarizeAll condenses up to five results concurrently. A summary is only
// started while elapsed time is below budget minus the safety margin, and
// in-flight calls are cancelled at that point. Chunks that are skipped, too
// short or whose call fails fall back to a truncated excerpt.
func (c *Composer) summarizeAll(ctx context.Context, results []domain.RetrievalResult, start time.Time) []groundingContext {
	n := min(len(results), maxSummarized)
	out := make([]groundingContext, n)

	cutoff := c.cfg.Budget - c.cfg.SafetyMargin
	sctx, cancel := context.WithDeadline(ctx, start.Add(cutoff))
	defer cancel()

	var g errgroup.Group
	for i := 0; i < n; i++ {
		r := results[i]
		out[i] = groundingContext{source: r.Chunk.SourceName(), chunkID: r.Chunk.ChunkID}
		text := PrepareForSummary(r.Chunk.Text)

		if c.now().Sub(start) >= cutoff || c.summarizer == nil || wordCount(text) < summaryMinWords {
			out[i].text = firstRunes(text, summaryExcerptChar)
			continue
		}

		g.Go(func() error {
			summary, err := c.summarizer.Summarize(sctx, text)
			if err != nil || strings.TrimSpace(summary) == "" {
				out[i].text = firstRunes(text, summaryExcerptChar)
				return nil
			}
			out[i].text = strings.TrimSpace(summary)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// PrepareForSummary flattens newlines, drops REFERENCES headings and keeps the
// first 400 characters.
func PrepareForSummary(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "REFERENCES", "")
	return firstRunes(strings.TrimSpace(text), summaryInputChars)
}

// BuildPrompt assembles the grounding prompt from labelled contexts.
func BuildPrompt(query string, contexts []groundingContext) string {
	blocks := make([]string, len(contexts))
	for i, gc := range contexts {
		blocks[i] = fmt.Sprintf("Source: %s | chunk_id: %d\n%s", gc.source, gc.chunkID, gc.text)
	}

	var b strings.Builder
	b.WriteString("You are an evidence-first clinical assistant. Use only the context below to answer the question. ")
	b.WriteString("If the context does not contain the answer, say 'I don't know' and recommend consulting a medical professional.")
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(query)
	b.WriteString("\n\nAnswer concisely and include the sources used.")
	return b.String()
}

// TruncateWords keeps the first max words and appends "..." when it cut.
func TruncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) > max {
		return strings.Join(words[:max], " ") + "..."
	}
	return strings.TrimSpace(text)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
