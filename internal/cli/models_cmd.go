package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/oremus-labs/ol-repo-gateway/internal/modelform"
	"github.com/oremus-labs/ol-repo-gateway/internal/validator"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the provider/model catalog",
}

var modelsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List providers and their models",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		catalog, err := client.ModelConfig(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), catalog); done {
			return err
		}
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "PROVIDER\tMODEL\tNAME\tCUSTOM\n")
		for _, p := range catalog.Providers {
			provider := p.ID
			if p.ID == catalog.DefaultProvider {
				provider += " (default)"
			}
			for _, m := range p.Models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", provider, m.ID, m.Name, p.SupportsCustomModel)
			}
			if len(p.Models) == 0 {
				fmt.Fprintf(tw, "%s\t-\t-\t%t\n", provider, p.SupportsCustomModel)
			}
		}
		flushTable(tw)
		return nil
	},
}

var modelsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a catalog file (YAML or JSON) against the ModelConfig schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateWatch {
			return watchCatalogFile(cmd.Context(), cmd.OutOrStdout(), args[0])
		}
		return reportCatalogFile(cmd.OutOrStdout(), args[0])
	},
}

var validateWatch bool

const watchDebounce = 200 * time.Millisecond

func reportCatalogFile(out io.Writer, path string) error {
	catalog, err := loadCatalogFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s is %s (%d providers).\n", path, okStyle.Render("valid"), len(catalog.Providers))
	return nil
}

// watchCatalogFile validates path now and again after every change until ctx
// is done. Validation failures are printed, not returned. The parent
// directory is watched so editors that replace the file are still seen.
func watchCatalogFile(ctx context.Context, out io.Writer, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	check := func() {
		if err := reportCatalogFile(out, path); err != nil {
			fmt.Fprintf(out, "%s is %s: %v\n", path, failStyle.Render("invalid"), err)
		}
	}
	check()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs || !evt.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			debounce = time.After(watchDebounce)
		case <-debounce:
			debounce = nil
			check()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "watch error: %v\n", err)
		}
	}
}

// loadCatalogFile reads a catalog document, converting YAML to JSON first.
func loadCatalogFile(path string) (*modelform.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
	}
	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateModelConfig(data).Err(); err != nil {
		return nil, err
	}
	var catalog modelform.ModelConfig
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsValidateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Re-validate whenever the file changes")
	modelsCmd.AddCommand(modelsValidateCmd)
}
