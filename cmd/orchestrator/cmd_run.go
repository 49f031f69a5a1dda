package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
)

var (
	runImages    []string
	runMode      string
	runEnableKG  bool
	runEnableRAG bool
	runCodeOnly  bool
)

var runCmd = &cobra.Command{
	Use:   "run [text...]",
	Short: "Run the pipeline once and print the result",
	Long: `Run the pipeline on the given text and images and print the result as
JSON. With --code only the generated diagram code is printed.

Examples:
  diagram run "network topology of the office"
  diagram run --mode mermaid --kg "approval workflow"
  diagram run --image https://example.com/sketch.png`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringArrayVar(&runImages, "image", nil, "image URL (repeatable)")
	runCmd.Flags().StringVar(&runMode, "mode", string(model.OutputAuto), "output mode: auto, mermaid, graphviz, svg or preview-only")
	runCmd.Flags().BoolVar(&runEnableKG, "kg", false, "enable knowledge graph augmentation")
	runCmd.Flags().BoolVar(&runEnableRAG, "rag", false, "enable retrieval augmentation")
	runCmd.Flags().BoolVar(&runCodeOnly, "code", false, "print only the generated code")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	opts, err := model.NewOptions(runEnableKG, runEnableRAG, runMode)
	if err != nil {
		return err
	}
	var images []model.ImageRef
	for i, url := range runImages {
		images = append(images, model.ImageRef{ID: fmt.Sprintf("img-%d", i+1), URL: url, Mime: "image/jpeg"})
	}
	payload, err := model.NewInputPayload(strings.Join(args, " "), images, opts)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if verbose {
		stop := streamEvents()
		defer stop()
	}

	res, err := a.Orchestrator.Run(cmd.Context(), payload)
	if err != nil {
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) {
			return fmt.Errorf("run %s failed: %w", runErr.RunID, runErr.Err)
		}
		return err
	}

	if runCodeOnly {
		fmt.Fprintln(cmd.OutOrStdout(), res.Draft.Code)
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// streamEvents prints every emitted event to stderr as a JSON line until
// the returned stop function is called.
func streamEvents() (stop func()) {
	sub := events.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range sub {
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintln(os.Stderr, string(b))
		}
	}()
	return func() {
		events.Unsubscribe(sub)
		<-done
	}
}
