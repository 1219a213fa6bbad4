// Package submit implements "forge submit", posting a build request to
// a running forged and printing the assigned build id.
package submit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	repoURL string
	commit  string
	script  string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a build request to forged",
	Long: `Submit a build request and print the assigned build id.

Examples:
	forge submit --repo https://github.com/acme/widgets --commit deadbeef --script https://github.com/acme/widgets/blob/master/build.sh
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if repoURL == "" || commit == "" || script == "" {
			return fmt.Errorf("--repo, --commit and --script are all required")
		}
		id, err := doSubmit(viper.GetString("api"), repoURL, commit, script)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d\n", id)
		return nil
	},
}

func New() *cobra.Command {
	submitCmd.Flags().StringVar(&repoURL, "repo", "", "repository URL to build")
	submitCmd.Flags().StringVar(&commit, "commit", "", "commit SHA1 to build")
	submitCmd.Flags().StringVar(&script, "script", "", "build script URL")
	return submitCmd
}

type submitRequest struct {
	RepoURL        string `json:"repo_url"`
	Commit         string `json:"commit"`
	BuildScriptURL string `json:"build_script_url"`
}

type submitResponse struct {
	BuildID uint64 `json:"build_id"`
}

func doSubmit(apiAddr, repoURL, commit, script string) (uint64, error) {
	body, err := json.Marshal(submitRequest{RepoURL: repoURL, Commit: commit, BuildScriptURL: script})
	if err != nil {
		return 0, err
	}
	resp, err := http.Post(apiAddr+"/builds", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("posting to %s: %w", apiAddr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return 0, fmt.Errorf("forged returned %s", resp.Status)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	return out.BuildID, nil
}
