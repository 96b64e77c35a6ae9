package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigureCmd creates the configure command.
func ConfigureCmd() *cobra.Command {
	var clearSaved bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save the server URL and token for later commands",
		Long: `Writes --api-url and --api-token to the user config file. Flags and
environment variables still take precedence over the saved values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if clearSaved {
				if err := ClearSavedConfig(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Saved configuration removed.")
				return nil
			}

			apiURL, _ := cmd.Flags().GetString("api-url")
			token, _ := cmd.Flags().GetString("api-token")
			if apiURL == "" && token == "" {
				return fmt.Errorf("nothing to save: pass --api-url and/or --api-token")
			}

			saved, err := LoadSavedConfig()
			if err != nil {
				return err
			}
			if apiURL != "" {
				saved.APIURL = NormalizeBaseURL(apiURL)
			}
			if token != "" {
				saved.APIToken = token
			}

			if err := saved.Save(); err != nil {
				return err
			}

			path, _ := ConfigPath()
			fmt.Fprintf(out, "Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearSaved, "clear", false, "Remove the saved configuration")

	return cmd
}
