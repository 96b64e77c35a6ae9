package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ReadyResponse represents the readiness API response.
type ReadyResponse struct {
	Status         string `json:"status"`
	Collection     string `json:"collection"`
	EmbeddingModel string `json:"embedding_model"`
	Chunks         int    `json:"chunks"`
}

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up and its index is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			ctx := contextOrBackground(cmd.Context())

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if err := api.Get(ctx, "/health", nil); err != nil {
				return fmt.Errorf("server at %s is unreachable: %w", api.BaseURL(), err)
			}

			var ready ReadyResponse
			readyErr := api.Get(ctx, "/ready", &ready)

			out := cmd.OutOrStdout()
			if outputJSON {
				data := map[string]interface{}{
					"url":   api.BaseURL(),
					"alive": true,
					"ready": readyErr == nil,
				}
				if readyErr == nil {
					data["index"] = ready
				} else {
					data["error"] = readyErr.Error()
				}
				output, _ := json.MarshalIndent(data, "", "  ")
				fmt.Fprintln(out, string(output))
				return nil
			}

			fmt.Fprintf(out, "Server:  %s (ok)\n", api.BaseURL())
			var apiErr *APIError
			switch {
			case readyErr == nil:
				fmt.Fprintf(out, "Index:   %s, %d chunks, %s\n", ready.Collection, ready.Chunks, ready.EmbeddingModel)
			case errors.As(readyErr, &apiErr):
				fmt.Fprintf(out, "Index:   not ready: %s\n", apiErr.Message)
			default:
				fmt.Fprintf(out, "Index:   not ready: %v\n", readyErr)
			}
			return nil
		},
	}
}
