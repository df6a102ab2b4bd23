package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

var runsJSON bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List published pipeline runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), "runs")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.repo.ListRuns(cmd.Context())
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if runsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		return printRuns(os.Stdout, runs)
	},
}

func init() {
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "print runs as JSON")
}

func printRuns(out io.Writer, runs []hierarchy.RunInfo) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "no published runs")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tENTITIES\tEDGES\tTOPICS\tDOMAINS\tDEGENERATE\tCURRENT")
	for _, r := range runs {
		current := ""
		if r.Current {
			current = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.RunID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Entities, r.Edges, r.Topics, r.Domains,
			strings.Join(r.Degenerate, ","),
			current,
		)
	}
	return w.Flush()
}
