package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// SourceItem is one indexed document.
type SourceItem struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// SourcesResponse represents one page of the sources API response.
type SourcesResponse struct {
	Items   []SourceItem `json:"items"`
	Cursor  string       `json:"cursor,omitempty"`
	HasMore bool         `json:"has_more"`
}

// ChunkResponse is a single stored chunk.
type ChunkResponse struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
	Text    string `json:"text"`
}

// SourcesCmd creates the sources command.
func SourcesCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List indexed documents",
		Long:  "Lists the documents in the index with their chunk counts, one page at a time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			page, err := listSources(cmd.Context(), api, cursor, limit)
			if err != nil {
				return err
			}
			return renderSources(cmd.OutOrStdout(), page, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of documents")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

// ChunkCmd creates the chunk command.
func ChunkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <id>",
		Short: "Show one stored chunk",
		Long:  "Fetches a chunk by its record id, e.g. guideline.pdf_chunk3.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var chunk ChunkResponse
			if err := api.Get(contextOrBackground(cmd.Context()), "/chunks/"+url.PathEscape(args[0]), &chunk); err != nil {
				return fmt.Errorf("get chunk failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				output, _ := json.MarshalIndent(chunk, "", "  ")
				fmt.Fprintln(out, string(output))
				return nil
			}
			fmt.Fprintf(out, "%s (chunk %d of %s)\n\n%s\n", chunk.ID, chunk.ChunkID, chunk.Source, chunk.Text)
			return nil
		},
	}
}

func listSources(ctx context.Context, api *APIClient, cursor string, limit int) (*SourcesResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	path := "/sources"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page SourcesResponse
	if err := api.Get(contextOrBackground(ctx), path, &page); err != nil {
		return nil, fmt.Errorf("list sources failed: %w", err)
	}
	return &page, nil
}

func renderSources(out io.Writer, page *SourcesResponse, outputJSON bool) error {
	if outputJSON {
		output, err := json.MarshalIndent(page, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No documents indexed.")
		return nil
	}

	for _, item := range page.Items {
		fmt.Fprintf(out, "%-50s %5d chunks\n", item.Source, item.Chunks)
	}
	if page.HasMore && page.Cursor != "" {
		fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
		fmt.Fprintf(out, "More documents available. Use --cursor %s\n", page.Cursor)
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
