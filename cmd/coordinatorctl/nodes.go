package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Inspect storage node health",
	}
	cmd.AddCommand(newNodesHealthCommand(), newNodesVerifyCommand())
	return cmd
}

func newNodesHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report heartbeat age and disk usage for every node",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := adminRequest(cmd, http.MethodGet, "/admin/nodes/health", nil)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}

func newNodesVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <node>",
		Short: "Verify integrity of every active chunk recorded on a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := adminRequest(cmd, http.MethodPost, "/admin/nodes/"+args[0]+"/verify", nil)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}
