package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/medrag/internal/database"
	"github.com/cloo-solutions/medrag/internal/jobs"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/spf13/cobra"
)

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build or refresh the vector index",
		Long: `Read every .txt, .md and .pdf file in the corpus, chunk and embed it, and
upsert the chunks into the index. Re-running over an unchanged corpus leaves the
index unchanged.

The corpus defaults to DATA_DIR and may be a local directory or an
s3://bucket/prefix URL. With --interval the command keeps running and
re-ingests on every tick until interrupted.`,
		RunE: runIngest,
	}

	cmd.Flags().String("data-dir", "", "Corpus location (overrides DATA_DIR)")
	cmd.Flags().Duration("interval", 0, "Re-ingest periodically at this interval")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if _, err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	corpus, err := openCorpus(ctx, cfg, dataDir)
	if err != nil {
		return err
	}

	ingestSvc, err := newIngestService(cfg, pool)
	if err != nil {
		return err
	}

	outputFormat, _ := cmd.Flags().GetString("output")
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		report, err := ingestSvc.Ingest(ctx, corpus)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		return printReport(cmd.OutOrStdout(), report, outputFormat)
	}

	log.Printf("ingest: watching %s every %s", corpus.Describe(), interval)
	worker := jobs.NewWorker(jobs.NewIngestWorker(ingestSvc, corpus), interval).RunOnStart()
	worker.Start(ctx)
	return nil
}

type reportJSON struct {
	RunID      string        `json:"run_id"`
	Corpus     string        `json:"corpus"`
	Files      int           `json:"files"`
	Indexed    int           `json:"indexed"`
	Chunks     int           `json:"chunks"`
	Batches    int           `json:"batches"`
	Pruned     int64         `json:"pruned"`
	DurationMS int64         `json:"duration_ms"`
	Skipped    []skippedJSON `json:"skipped"`
}

type skippedJSON struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func printReport(out io.Writer, report *service.IngestReport, format string) error {
	if format == "json" {
		skipped := make([]skippedJSON, 0, len(report.Skipped))
		for _, sf := range report.Skipped {
			skipped = append(skipped, skippedJSON{Name: sf.Name, Reason: sf.Reason})
		}
		data := reportJSON{
			RunID:      report.RunID,
			Corpus:     report.Corpus,
			Files:      report.Files,
			Indexed:    report.Indexed,
			Chunks:     report.Chunks,
			Batches:    report.Batches,
			Pruned:     report.Pruned,
			DurationMS: report.Duration.Milliseconds(),
			Skipped:    skipped,
		}
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(out, "Ingested %s (run %s)\n", report.Corpus, report.RunID)
	fmt.Fprintf(out, "  files:   %d found, %d indexed, %d skipped\n", report.Files, report.Indexed, len(report.Skipped))
	fmt.Fprintf(out, "  chunks:  %d in %d batches\n", report.Chunks, report.Batches)
	if report.Pruned > 0 {
		fmt.Fprintf(out, "  pruned:  %d stale chunks\n", report.Pruned)
	}
	fmt.Fprintf(out, "  elapsed: %s\n", report.Duration.Round(time.Millisecond))
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "  skipped %s: %s\n", s.Name, s.Reason)
	}
	return nil
}
