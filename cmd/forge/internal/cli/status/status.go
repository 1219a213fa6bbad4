// Package status implements "forge status <build-id>", a one-shot
// output/exit-code query against forged.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status <build-id>",
	Short: "Print a build's recorded output and exit code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := fetch(viper.GetString("api"), args[0])
		if err != nil {
			return err
		}
		fmt.Print(out.Text)
		if out.ExitCode != nil {
			fmt.Printf("exit code: %d\n", *out.ExitCode)
		} else {
			fmt.Println("(still running)")
		}
		return nil
	},
}

func New() *cobra.Command {
	return statusCmd
}

type outputResponse struct {
	Text     string `json:"text"`
	ExitCode *int   `json:"exit_code,omitempty"`
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
