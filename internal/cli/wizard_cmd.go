package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/oremus-labs/ol-repo-gateway/internal/modelform"
)

// wizardInput collects the selections applied to the form, in order.
type wizardInput struct {
	Provider       string
	Model          string
	CustomModel    string
	FilterMode     string
	Dirs           string
	Files          string
	TestConnection bool
}

var wizardFlags wizardInput

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Walk through the model and path-filter form",
	Long: `wizard loads the provider/model catalog from the gateway, applies the
selections given as flags, optionally tests the LiteLLM credentials and prints
the resulting configuration together with what changed from the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, err := mustClient()
		if err != nil {
			return err
		}
		form := modelform.New(modelform.Defaults{
			Filter:  modelform.FilterConfig{Mode: modelform.FilterExclude},
			LiteLLM: flagCredentials(ctx),
		})
		return runWizard(cmd.Context(), cmd.OutOrStdout(), form, client, client, wizardFlags)
	},
}

func runWizard(ctx context.Context, out io.Writer, form *modelform.Form, src modelform.CatalogSource, tester modelform.ConnectionTester, in wizardInput) error {
	if err := form.Load(ctx, src); err != nil {
		fmt.Fprintf(out, "Catalog unavailable, keeping defaults: %v\n", err)
	}
	initial := form.Snapshot()

	if in.Provider != "" {
		if err := form.SelectProvider(in.Provider); err != nil {
			return err
		}
	}
	if in.CustomModel != "" {
		if err := form.ToggleCustomModel(true); err != nil {
			return err
		}
		if err := form.SetCustomModel(in.CustomModel); err != nil {
			return err
		}
	} else if in.Model != "" {
		if err := form.SelectModel(in.Model); err != nil {
			return err
		}
	}
	if in.FilterMode != "" || in.Dirs != "" || in.Files != "" {
		if err := form.EditFilter(modelform.FilterConfig{
			Mode:  modelform.FilterMode(in.FilterMode),
			Dirs:  in.Dirs,
			Files: in.Files,
		}); err != nil {
			return err
		}
	}
	if in.TestConnection {
		form.TestConnection(ctx, tester)
	}

	final := form.Snapshot()
	if final.Status == modelform.StatusReady {
		if err := form.Validate(); err != nil {
			return err
		}
	}

	if done, err := writeStructured(out, final); done {
		return err
	}
	printSnapshot(out, final, form.EffectiveModel())
	if diff := cmp.Diff(initial, final); diff != "" {
		fmt.Fprintf(out, "\nChanges from defaults (-default +selected):\n%s", diff)
	}
	return nil
}

func printSnapshot(out io.Writer, s modelform.Snapshot, effectiveModel string) {
	tw := newTable(out)
	fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	if s.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", s.Error)
	}
	fmt.Fprintf(tw, "Provider:\t%s\n", valueOrDash(s.Provider))
	fmt.Fprintf(tw, "Model:\t%s\n", valueOrDash(effectiveModel))
	fmt.Fprintf(tw, "Custom model:\t%t\n", s.IsCustomModel)
	fmt.Fprintf(tw, "Filter mode:\t%s\n", s.Filter.Mode)
	for _, d := range s.Filter.DirPatterns() {
		fmt.Fprintf(tw, "  dir:\t%s\n", d)
	}
	for _, f := range s.Filter.FilePatterns() {
		fmt.Fprintf(tw, "  file:\t%s\n", f)
	}
	fmt.Fprintf(tw, "LiteLLM base URL:\t%s\n", valueOrDash(s.LiteLLMBaseURL))
	fmt.Fprintf(tw, "LiteLLM API key:\t%s\n", valueOrDash(s.LiteLLMAPIKey))
	if s.ConnectionTest != nil {
		status := failStyle.Render("FAILED")
		if s.ConnectionTest.Success {
			status = okStyle.Render("OK")
		}
		fmt.Fprintf(tw, "Connection test:\t%s %s\n", status, s.ConnectionTest.Message)
	}
	flushTable(tw)
}

func init() {
	wizardCmd.Flags().StringVar(&wizardFlags.Provider, "provider", "", "Provider id (defaults to the catalog default)")
	wizardCmd.Flags().StringVar(&wizardFlags.Model, "model", "", "Model id from the provider's list")
	wizardCmd.Flags().StringVar(&wizardFlags.CustomModel, "custom-model", "", "Free-text model name (provider must allow custom models)")
	wizardCmd.Flags().StringVar(&wizardFlags.FilterMode, "filter-mode", "", "Path filter mode: exclude|include")
	wizardCmd.Flags().StringVar(&wizardFlags.Dirs, "dirs", "", "Newline-separated directory patterns")
	wizardCmd.Flags().StringVar(&wizardFlags.Files, "files", "", "Newline-separated file patterns")
	wizardCmd.Flags().BoolVar(&wizardFlags.TestConnection, "test-connection", false, "Test the LiteLLM credentials")
	addCredentialFlags(wizardCmd)
}
