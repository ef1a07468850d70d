package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newStorageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect storage tiers and deduplication savings",
	}
	cmd.AddCommand(newStorageTiersCommand(), newStorageDeduplicationCommand())
	return cmd
}

func newStorageTiersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List configured storage tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := adminRequest(cmd, http.MethodGet, "/admin/storage/tiers", nil)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}

func newStorageDeduplicationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deduplication",
		Short: "List deduplication savings",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := adminRequest(cmd, http.MethodGet, "/admin/storage/deduplication", nil)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}
