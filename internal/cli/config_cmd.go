package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configSetContextCmd = &cobra.Command{
	Use:   "set-context <name>",
	Short: "Create or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		makeCurrent, _ := cmd.Flags().GetBool("current")

		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		// Flags that were not given keep the saved values.
		ctx, _ := cfg.Lookup(name)
		ctx.Name = name
		for flag, field := range map[string]*string{
			"gateway":          &ctx.Server,
			"api-token":        &ctx.Token,
			"litellm-base-url": &ctx.LiteLLMBaseURL,
			"litellm-api-key":  &ctx.LiteLLMAPIKey,
		} {
			if cmd.Flags().Changed(flag) {
				*field, _ = cmd.Flags().GetString(flag)
			}
		}
		if err := cfg.Set(ctx, makeCurrent); err != nil {
			return err
		}
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q updated.\n", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if _, err := cfg.Lookup(args[0]); err != nil {
			return err
		}
		cfg.CurrentContext = args[0]
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Delete(args[0]); err != nil {
			return err
		}
		if err := SaveConfig(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Print the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No context configured.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the configured contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), redactConfig(cfg)); done {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", cfgFile)
		names := make([]string, 0, len(cfg.Contexts))
		for name := range cfg.Contexts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			current := " "
			if cfg.CurrentContext == name {
				current = "*"
			}
			ctx := cfg.Contexts[name]
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)", current, name, ctx.Server)
			if ctx.LiteLLMAPIKey != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " litellm key %s", ctx.Credentials().Masked())
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}

// redactConfig masks secrets before the config is printed.
func redactConfig(cfg *Config) *Config {
	out := &Config{CurrentContext: cfg.CurrentContext, Contexts: make(map[string]Context, len(cfg.Contexts))}
	for name, ctx := range cfg.Contexts {
		if ctx.Token != "" {
			ctx.Token = "****"
		}
		if ctx.LiteLLMAPIKey != "" {
			ctx.LiteLLMAPIKey = ctx.Credentials().Masked()
		}
		out.Contexts[name] = ctx
	}
	return out
}

func init() {
	configSetContextCmd.Flags().String("gateway", "", "Gateway URL")
	configSetContextCmd.Flags().String("api-token", "", "Gateway API token")
	configSetContextCmd.Flags().String("litellm-base-url", "", "LiteLLM base URL used by 'litellm test' and 'wizard'")
	configSetContextCmd.Flags().String("litellm-api-key", "", "LiteLLM API key used by 'litellm test' and 'wizard'")
	configSetContextCmd.Flags().Bool("current", true, "Set as current context")
	configCmd.AddCommand(configSetContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configViewCmd)
}
