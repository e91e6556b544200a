package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/repourl"
	"github.com/oremus-labs/ol-repo-gateway/internal/store"
)

var (
	structureUser  string
	structureToken string
	historyLimit   int
	verifyParallel int
)

var gerritCmd = &cobra.Command{
	Use:   "gerrit",
	Short: "Verify Gerrit servers and browse repositories",
}

var gerritVerifyCmd = &cobra.Command{
	Use:   "verify <url> [url...]",
	Short: "Check whether URLs host a Gerrit server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		results, err := verifyAll(cmd.Context(), client, args, verifyParallel)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(results) == 1 {
			if done, err := writeStructured(out, results[0]); done {
				return err
			}
		} else if done, err := writeStructured(out, results); done {
			return err
		}
		for i, result := range results {
			if len(results) > 1 {
				fmt.Fprintf(out, "%s\n", headerStyle.Render(args[i]))
			}
			printVerifyResult(out, result)
		}
		return nil
	},
}

// verifyAll verifies urls concurrently, at most parallel at a time, and
// returns the results in argument order.
func verifyAll(ctx context.Context, client *Client, urls []string, parallel int) ([]gerrit.Result, error) {
	results := make([]gerrit.Result, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			var result gerrit.Result
			if err := client.PostJSON(ctx, "/gerrit/verify", map[string]string{"url": u}, &result); err != nil {
				return fmt.Errorf("verify %s: %w", u, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printVerifyResult(out io.Writer, result gerrit.Result) {
	if result.IsGerrit {
		fmt.Fprintf(out, "%s %s detected at %s\n", okStyle.Render("Gerrit"), result.Version, result.BaseURL)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", failStyle.Render("Not a Gerrit server"), result.Reason)
	if result.Details != "" {
		fmt.Fprintf(out, "Details: %s\n", result.Details)
	}
	for _, endpoint := range result.TriedEndpoints {
		fmt.Fprintf(out, "  tried %s\n", endpoint)
	}
}

var gerritStructureCmd = &cobra.Command{
	Use:   "structure <repo-url>",
	Short: "Fetch the repository structure through the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		payload := map[string]string{"repo_url": args[0]}
		if structureUser != "" {
			payload["gerrit_user"] = structureUser
		}
		if structureToken != "" {
			payload["token"] = structureToken
		}
		var structure json.RawMessage
		if err := client.PostJSON(cmd.Context(), "/gerrit/structure", payload, &structure); err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), structure); done {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Host:    %s\n", repourl.ExtractDomain(args[0]))
		fmt.Fprintf(out, "Project: %s\n", valueOrDash(repourl.ExtractPath(args[0])))
		return printJSON(out, structure)
	},
}

var gerritHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent Gerrit verifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		records, err := fetchHistory(cmd.Context(), client, historyLimit)
		if err != nil {
			return err
		}
		if done, err := writeStructured(cmd.OutOrStdout(), records); done {
			return err
		}
		now := time.Now()
		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintf(tw, "ID\tURL\tGERRIT\tVERSION\tREASON\tWHEN\n")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n",
				r.ID,
				r.URL,
				r.IsGerrit,
				valueOrDash(r.Version),
				valueOrDash(r.Reason),
				relativeTime(r.CreatedAt, now))
		}
		flushTable(tw)
		return nil
	},
}

func fetchHistory(ctx context.Context, client *Client, limit int) ([]store.Verification, error) {
	path := "/gerrit/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var body struct {
		Verifications []store.Verification `json:"verifications"`
	}
	if err := client.GetJSON(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Verifications, nil
}

func init() {
	gerritStructureCmd.Flags().StringVar(&structureUser, "gerrit-user", "", "Gerrit username for authenticated repositories")
	gerritStructureCmd.Flags().StringVar(&structureToken, "gerrit-token", "", "Gerrit HTTP password or token")
	gerritVerifyCmd.Flags().IntVar(&verifyParallel, "parallel", 4, "Maximum concurrent verifications")
	gerritHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum records to show")
	gerritCmd.AddCommand(gerritVerifyCmd)
	gerritCmd.AddCommand(gerritStructureCmd)
	gerritCmd.AddCommand(gerritHistoryCmd)
}
