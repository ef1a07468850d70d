package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

func newRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <filename> <version>",
		Short: "Roll a file back to an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			if _, err := strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("version must be an integer: %w", err)
			}

			resp, err := http.Post(serverURL(cmd)+"/rollback/"+filename+"/"+args[1], "application/json", nil)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			return printJSONResponse(resp)
		},
	}
}
