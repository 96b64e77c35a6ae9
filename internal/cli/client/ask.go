package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the query API request.
type AskRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Summarize *bool  `json:"summarize,omitempty"`
}

// AskResponse represents the query API response.
type AskResponse struct {
	Query    string   `json:"query"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Contexts []string `json:"contexts"`
	Mode     string   `json:"mode"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		topK         int
		mode         string
		noSummarize  bool
		showContexts bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the indexed corpus",
		Long: `Sends the question to POST /query and prints the answer with its sources.

Extractive mode returns the retrieved passages verbatim. Generative mode asks
the configured chat model for a short answer grounded in those passages and
requires the server to have an OpenAI key.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := AskRequest{
				Query: strings.Join(args, " "),
				TopK:  topK,
				Mode:  mode,
			}
			if noSummarize {
				summarize := false
				req.Summarize = &summarize
			}

			resp, err := ask(cmd.Context(), api, req)
			if err != nil {
				return err
			}
			return renderAnswer(cmd.OutOrStdout(), resp, outputJSON, showContexts)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (server default when 0)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Answer mode: extractive or generative (server default when empty)")
	cmd.Flags().BoolVar(&noSummarize, "no-summarize", false, "Skip per-passage summaries in generative mode")
	cmd.Flags().BoolVar(&showContexts, "contexts", false, "Print the passages the answer was grounded on")

	return cmd
}

func ask(ctx context.Context, api *APIClient, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	var resp AskResponse
	if err := api.Post(contextOrBackground(ctx), "/query", req, &resp); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &resp, nil
}

func renderAnswer(out io.Writer, resp *AskResponse, outputJSON, showContexts bool) error {
	if outputJSON {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if strings.TrimSpace(resp.Answer) == "" {
		fmt.Fprintln(out, "No relevant passages found.")
		return nil
	}

	fmt.Fprintln(out, resp.Answer)
	fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(out, "Mode: %s\n", resp.Mode)
	fmt.Fprintln(out, "Sources:")
	for i, source := range resp.Sources {
		fmt.Fprintf(out, "  %d. %s\n", i+1, source)
	}

	if showContexts && len(resp.Contexts) > 0 {
		fmt.Fprintln(out, "Contexts:")
		for i, c := range resp.Contexts {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, c)
		}
	}
	return nil
}
