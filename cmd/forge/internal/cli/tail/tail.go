// Package tail implements "forge tail <build-id>", polling forged for
// output growth until the build finishes. forged has no push-based
// streaming surface (spec.md's live fan-out is internal to the
// engine), so the client polls the same output endpoint "forge
// status" uses and prints only the newly-appeared suffix.
package tail

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pollInterval time.Duration

var tailCmd = &cobra.Command{
	Use:   "tail <build-id>",
	Short: "Follow a build's output until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(viper.GetString("api"), args[0], pollInterval)
	},
}

func New() *cobra.Command {
	tailCmd.Flags().DurationVar(&pollInterval, "interval", 500*time.Millisecond, "poll interval")
	return tailCmd
}

type outputResponse struct {
	Text     string `json:"text"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

func run(apiAddr, buildID string, interval time.Duration) error {
	// A TTY gets a progress dot on stderr for each poll that finds the
	// build still running; piped output (e.g. into a log file) does not.
	interactive := isatty.IsTerminal(os.Stderr.Fd())

	var printed int
	for {
		out, err := fetch(apiAddr, buildID)
		if err != nil {
			return err
		}
		if len(out.Text) > printed {
			fmt.Print(out.Text[printed:])
			printed = len(out.Text)
		}
		if out.ExitCode != nil {
			fmt.Printf("exit code: %d\n", *out.ExitCode)
			return nil
		}
		if interactive {
			fmt.Fprint(os.Stderr, ".")
		}
		time.Sleep(interval)
	}
}

func fetch(apiAddr, buildID string) (outputResponse, error) {
	resp, err := http.Get(apiAddr + "/builds/" + buildID + "/output")
	if err != nil {
		return outputResponse{}, fmt.Errorf("querying %s: %w", apiAddr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return outputResponse{}, fmt.Errorf("no such build: %s", buildID)
	}
	if resp.StatusCode != http.StatusOK {
		return outputResponse{}, fmt.Errorf("forged returned %s", resp.Status)
	}
	var out outputResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return outputResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}
