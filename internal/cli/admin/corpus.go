package admin

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloo-solutions/medrag/internal/storage"
	"github.com/spf13/cobra"
)

func CorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the document corpus",
		Long:  "Copy local documents into object storage so ingestion can read them from S3",
	}

	cmd.AddCommand(CorpusPushCmd())

	return cmd
}

func CorpusPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <dir>",
		Short: "Upload a local corpus to S3",
		Long:  "Upload every .txt, .md and .pdf file directly under <dir> to S3_BUCKET under --prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runCorpusPush,
	}

	cmd.Flags().String("prefix", "", "Key prefix inside the bucket")

	return cmd
}

func runCorpusPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newS3Client(ctx, cfg, "")
	if err != nil {
		return err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", client.Bucket())

	prefix, _ := cmd.Flags().GetString("prefix")
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	n, err := storage.PushCorpus(ctx, storage.NewLocalCorpus(dir), client, prefix)
	if err != nil {
		return fmt.Errorf("failed to push corpus (%d files uploaded): %w", n, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d files to s3://%s/%s\n", n, client.Bucket(), prefix)
	return nil
}
