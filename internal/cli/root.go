// Package cli implements rgw, the command-line client for the repo gateway.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	contextName   string
	overrideURL   string
	overrideToken string
	outputFormat  string
	requestTime   time.Duration

	appConfig *Config
)

// Execute runs the CLI.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "rgw",
	Short: "Verify Gerrit repositories and configure models through the repo gateway",
	Long: `rgw talks to a repo gateway: it verifies Gerrit servers, fetches repository
structure, tests LiteLLM credentials and walks through the model form.
Most commands require a configured context (see 'rgw config set-context').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Config commands load/save the file manually.
		if strings.HasPrefix(cmd.CommandPath(), "rgw config") {
			return nil
		}
		if appConfig == nil {
			var err error
			appConfig, err = LoadConfig(cfgFile)
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "Path to the rgw config file")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Context name to use (overrides current)")
	rootCmd.PersistentFlags().StringVar(&overrideURL, "server", "", "Override gateway URL")
	rootCmd.PersistentFlags().StringVar(&overrideToken, "token", "", "Override API token")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")
	rootCmd.PersistentFlags().DurationVar(&requestTime, "request-timeout", 60*time.Second, "Timeout for each gateway request")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(gerritCmd)
	rootCmd.AddCommand(litellmCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(eventsCmd)
}

// resolvedContext merges config state with flag overrides. A --server flag
// works without any saved context.
func resolvedContext() (*Context, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	ctxName := contextName
	if ctxName == "" {
		ctxName = appConfig.CurrentContext
	}
	ctx, err := appConfig.Lookup(ctxName)
	if err != nil && overrideURL == "" {
		return nil, fmt.Errorf("%w; use 'rgw config set-context'", err)
	}
	if overrideURL != "" {
		ctx.Server = overrideURL
	}
	if overrideToken != "" {
		ctx.Token = overrideToken
	}
	if ctx.Server == "" {
		return nil, fmt.Errorf("context %q is missing a server URL", ctxName)
	}
	return &ctx, nil
}

func mustClient() (*Client, *Context, error) {
	ctx, err := resolvedContext()
	if err != nil {
		return nil, nil, err
	}
	client := &Client{
		BaseURL: ctx.Server,
		Token:   ctx.Token,
		Timeout: requestTime,
	}
	return client, ctx, nil
}
