package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [FILE]",
	Short: "Fetch a JPEG snapshot from a running server",
	Long: `Request one frame from a running CamStreamer server and write it to FILE,
or to stdout when FILE is omitted or "-".`,
	Example: `  # Save a snapshot from the local server
  camstreamer snapshot frame.jpg

  # Fetch from another host
  camstreamer snapshot --url http://pi.local:8080 frame.jpg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnapshot,
}

var (
	snapshotURL     string
	snapshotTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "", "server base URL (default is http://localhost:<server_port>)")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 5*time.Second, "request timeout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	base := snapshotURL
	if base == "" {
		configMgr, err := loadConfig()
		if err != nil {
			return err
		}
		base = fmt.Sprintf("http://localhost:%d", configMgr.Get().ServerPort)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), snapshotTimeout)
	defer cancel()

	data, err := fetchSnapshot(ctx, base)
	if err != nil {
		return err
	}

	if len(args) == 0 || args[0] == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	fmt.Printf("✅ Saved %d bytes to %s\n", len(data), args[0])
	return nil
}

// fetchSnapshot requests /snapshot and checks the payload is a JPEG
func fetchSnapshot(ctx context.Context, base string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/snapshot", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, data)
	}

	if mt := mimetype.Detect(data); !mt.Is("image/jpeg") {
		return nil, fmt.Errorf("unexpected snapshot payload: %s", mt.String())
	}
	return data, nil
}
