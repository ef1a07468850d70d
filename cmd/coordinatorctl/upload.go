package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file to the coordinator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := uploadFile(serverURL(cmd), args[0])
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}
