package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func newDownloadCommand() *cobra.Command {
	var version int
	var out string

	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a file, optionally at a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			url := serverURL(cmd) + "/download/" + filename
			if version > 0 {
				url = fmt.Sprintf("%s?version=%d", url, version)
			}

			resp, err := http.Get(url)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("download failed with status %d: %s", resp.StatusCode, body)
			}

			destination := out
			if destination == "" {
				destination = filename
			}
			f, err := os.Create(destination)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(f, resp.Body); err != nil {
				return err
			}
			fmt.Printf("wrote %s (resolved version %s)\n", destination, resp.Header.Get("X-Resolved-Version"))
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "specific version to download; defaults to the current version")
	cmd.Flags().StringVar(&out, "out", "", "destination path; defaults to the downloaded filename")
	return cmd
}
