package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-repo-gateway/internal/litellm"
)

var (
	litellmAPIKey  string
	litellmBaseURL string
)

var litellmCmd = &cobra.Command{
	Use:   "litellm",
	Short: "Work with LiteLLM credentials",
}

var litellmTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Test LiteLLM credentials through the gateway",
	Long: `Test LiteLLM credentials. Values not given as flags come from the context
(see 'rgw config set-context --litellm-api-key') and then from LITELLM_API_KEY
and LITELLM_BASE_URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, err := mustClient()
		if err != nil {
			return err
		}
		creds := flagCredentials(ctx)
		result, err := client.TestConnection(cmd.Context(), creds)
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), result); done {
			return err
		}
		status := failStyle.Render("FAILED")
		if result.Success {
			status = okStyle.Render("OK")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", status, result.Message)
		if !result.Success {
			return fmt.Errorf("connection test failed")
		}
		return nil
	},
}

// flagCredentials resolves LiteLLM credentials field by field: flags first,
// then the context, then LITELLM_API_KEY / LITELLM_BASE_URL.
func flagCredentials(ctx *Context) litellm.Credentials {
	creds := litellm.Credentials{APIKey: litellmAPIKey, BaseURL: litellmBaseURL}
	if ctx != nil {
		creds = creds.Merge(ctx.Credentials())
	}
	return creds.Merge(litellm.FromEnv())
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&litellmAPIKey, "api-key", "", "LiteLLM API key")
	cmd.Flags().StringVar(&litellmBaseURL, "base-url", "", "LiteLLM base URL")
}

func init() {
	addCredentialFlags(litellmTestCmd)
	litellmCmd.AddCommand(litellmTestCmd)
}
