package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"streamgen/pkg/api"
)

// The control verbs are thin HTTP clients against the API of a running
// producer, addressed by the --api-url flag.

var controlToken string

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running producer",
		RunE: func(*cobra.Command, []string) error {
			body, err := callAPI(http.MethodGet, "/status", nil)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, body, "", "  "); err != nil {
				pretty.Write(body)
			}
			fmt.Fprintln(os.Stdout, pretty.String())
			return nil
		},
	}
	addTokenFlag(cmd)
	return cmd
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start or resume a producer",
		RunE: func(*cobra.Command, []string) error {
			return controlCall("/start")
		},
	}
	addTokenFlag(cmd)
	return cmd
}

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running producer",
		RunE: func(*cobra.Command, []string) error {
			return controlCall("/stop")
		},
	}
	addTokenFlag(cmd)
	return cmd
}

func newPauseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause a running producer",
		RunE: func(*cobra.Command, []string) error {
			return controlCall("/pause")
		},
	}
	addTokenFlag(cmd)
	return cmd
}

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused producer",
		RunE: func(*cobra.Command, []string) error {
			return controlCall("/resume")
		},
	}
	addTokenFlag(cmd)
	return cmd
}

func newUpdateRateCmd() *cobra.Command {
	var (
		rateFlag int
		interval string
	)
	cmd := &cobra.Command{
		Use:   "update-rate",
		Short: "Change the cadence of a running producer",
		RunE: func(*cobra.Command, []string) error {
			req := api.RateRequest{Rate: rateFlag, Interval: interval}
			payload, err := json.Marshal(req)
			if err != nil {
				return err
			}
			body, err := callAPI(http.MethodPost, "/rate", payload)
			if err != nil {
				return err
			}
			return printResponse(body)
		},
	}
	cmd.Flags().IntVarP(&rateFlag, "rate", "r", 0, "records per second")
	cmd.Flags().StringVarP(&interval, "interval", "i", "", "interval between records, e.g. 5s")
	addTokenFlag(cmd)
	return cmd
}

func addTokenFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&controlToken, "token", "", "API key for a token-protected producer")
}

func controlCall(path string) error {
	body, err := callAPI(http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	return printResponse(body)
}

func printResponse(body []byte) error {
	var resp api.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unexpected response: %s", body)
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Fprintln(os.Stdout, resp.Message)
	return nil
}

func callAPI(method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, apiURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if controlToken != "" {
		req.Header.Set("X-API-Key", controlToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach producer API at %s: %w", apiURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("api rejected request: %s", bytes.TrimSpace(raw))
	}
	return raw, nil
}
