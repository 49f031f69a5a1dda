package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/DiagramEngine/internal/report"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "Print a recorded run",
	Long: `Print the steps and artifacts of a recorded run. Runs are only found
when the configured store outlives the process (sqlite or postgres).`,
	Args: cobra.ExactArgs(1),
	RunE: showRun,
}

func init() {
	showCmd.Flags().StringVar(&showFormat, "format", "json", "output format: json, md or html")
}

func showRun(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	rec, err := a.Ledger.Record(ctx, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()

	switch showFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "md", "html":
		draft, err := report.RunDraft(ctx, rec, a.Store)
		if err != nil {
			return err
		}
		if showFormat == "md" {
			_, err = fmt.Fprint(out, report.Markdown(rec, draft))
			return err
		}
		body, err := report.HTML(rec, draft)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, body)
		return err
	}
	return fmt.Errorf("unknown format %q", showFormat)
}
