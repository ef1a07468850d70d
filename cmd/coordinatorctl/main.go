// Command coordinatorctl is a thin HTTP client for operating a running
// coordinatord instance from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coordinatorctl",
		Short: "Admin CLI for the distributed storage coordinator",
		Long:  `coordinatorctl talks to a running coordinatord's HTTP surface to upload, download, roll back files, and inspect node and storage health.`,
	}

	rootCmd.PersistentFlags().String("server", "http://localhost:8443", "coordinator base URL")
	rootCmd.PersistentFlags().String("admin-key", os.Getenv("COORDINATOR_ADMIN_KEY"), "admin key for admin-gated endpoints")

	rootCmd.AddCommand(
		newUploadCommand(),
		newDownloadCommand(),
		newVersionsCommand(),
		newDiffCommand(),
		newRollbackCommand(),
		newNodesCommand(),
		newStorageCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
