package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newChunkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <file>",
		Short: "Print the chunks a file splits into, as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(args[0])
			if err != nil {
				return err
			}

			p, cleanup, err := opts.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := p.Chunk(cmd.Context(), content, opts.params())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
