package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/medrag/internal/repository"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/spf13/cobra"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the vector index",
	}

	cmd.AddCommand(IndexStatusCmd())

	return cmd
}

func IndexStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the collection, its embedding model and chunk count",
		Args:  cobra.NoArgs,
		RunE:  runIndexStatus,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	catalog := service.NewCatalog(repository.NewCollectionRepository(pool), repository.NewIndexRepository(pool), cfg.IndexCollection)
	status, err := catalog.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index status: %w", err)
	}

	col := status.Collection
	mismatch := col.CheckEmbeddingSpace(cfg.EmbeddingModel, cfg.EmbeddingDimensions)

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data := map[string]interface{}{
			"collection":      col.Name,
			"embedding_model": col.Identity(),
			"chunks":          status.Chunks,
			"updated_at":      col.UpdatedAt,
			"compatible":      mismatch == nil,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(out, "Collection: %s\n", col.Name)
	fmt.Fprintf(out, "Embedding:  %s\n", col.Identity())
	fmt.Fprintf(out, "Chunks:     %d\n", status.Chunks)
	fmt.Fprintf(out, "Updated:    %s\n", col.UpdatedAt.Format(time.RFC3339))
	if mismatch != nil {
		fmt.Fprintf(out, "Warning:    %v\n", mismatch)
	}
	return nil
}
