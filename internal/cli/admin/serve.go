package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/medrag/internal/api/handlers"
	"github.com/cloo-solutions/medrag/internal/database"
	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/repository"
	"github.com/cloo-solutions/medrag/internal/server"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the medrag question answering API on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

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

	collectionRepo := repository.NewCollectionRepository(pool)
	indexRepo := repository.NewIndexRepository(pool)

	embedder := newEmbedder(cfg)
	chat, err := newChatClient(cfg)
	if err != nil {
		return err
	}

	// A nil *ChatClient must not leak into the interfaces as a non-nil value.
	var (
		generator  service.Generator
		summarizer service.Summarizer
	)
	if chat != nil {
		generator = chat
		summarizer = chat
	}

	retriever := service.NewRetriever(embedder, collectionRepo, indexRepo, service.RetrieverConfig{
		Collection: cfg.IndexCollection,
		MaxTopK:    cfg.MaxTopK,
	})
	composer := service.NewComposer(generator, summarizer, service.ComposerConfig{
		DefaultMode:  domain.AnswerMode(cfg.AnswerMode),
		Summarize:    cfg.SummarizeContexts,
		Budget:       cfg.AnswerBudget,
		SafetyMargin: cfg.SummarySafetyMargin,
		MaxWords:     cfg.AnswerMaxWords,
		MaxContexts:  cfg.MaxContexts,
	})
	answerSvc := service.NewAnswerService(retriever, composer, cfg.DefaultTopK)
	catalog := service.NewCatalog(collectionRepo, indexRepo, cfg.IndexCollection)

	if err := answerSvc.Ready(ctx); err != nil {
		// The index may be built after the server starts; /ready reports it.
		log.Printf("index %s not ready: %v", cfg.IndexCollection, err)
	}

	router := server.NewRouter(server.RouterConfig{
		APIToken:     cfg.APIToken,
		QueryHandler: handlers.NewQueryHandler(answerSvc),
		IndexHandler: handlers.NewIndexHandler(catalog, answerSvc, string(composer.DefaultMode())),
	})

	// Generative answers may take the full answer budget.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.AnswerBudget + 15*time.Second,
	}

	go func() {
		log.Printf("starting server on port %s (mode=%s, collection=%s, embedding=%s)",
			cfg.Port, composer.DefaultMode(), cfg.IndexCollection, embedder.ModelIdentity())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
