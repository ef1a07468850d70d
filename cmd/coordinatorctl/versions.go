package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <filename>",
		Short: "List every recorded version of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(serverURL(cmd) + "/versions/" + args[0])
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}

func newDiffCommand() *cobra.Command {
	var v1, v2 int

	cmd := &cobra.Command{
		Use:   "diff <filename>",
		Short: "Compare two versions of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/diff/%s?v1=%d&v2=%d", serverURL(cmd), args[0], v1, v2)
			resp, err := http.Get(url)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}

	cmd.Flags().IntVar(&v1, "v1", 0, "first version to compare")
	cmd.Flags().IntVar(&v2, "v2", 0, "second version to compare")
	cmd.MarkFlagRequired("v1")
	cmd.MarkFlagRequired("v2")
	return cmd
}
