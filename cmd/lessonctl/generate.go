package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lessonforge/internal/lesson"
)

func newGenerateCmd(opts *options) *cobra.Command {
	var workflow string

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate lessons from a file, one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(args[0])
			if err != nil {
				return err
			}

			if workflow == "" {
				workflow = lesson.WorkflowCheap
				if os.Getenv("GEMINI_API_KEY") != "" {
					workflow = lesson.WorkflowHybrid
				}
			}

			p, cleanup, err := opts.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for res := range p.GenerateLessons(cmd.Context(), content, workflow, opts.params()) {
				if res.Err != nil {
					return fmt.Errorf("generate: %w", res.Err)
				}
				if err := enc.Encode(res.Lesson); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "", "Workflow: cheap, hybrid or premium (default cheap, or hybrid with GEMINI_API_KEY)")
	return cmd
}
