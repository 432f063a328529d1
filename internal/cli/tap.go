package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newTapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Stream delivered records from a running producer",
		RunE: func(*cobra.Command, []string) error {
			return runTap()
		},
	}
	addTokenFlag(cmd)
	return cmd
}

// runTap attaches to the producer's /tap websocket and prints each delivered
// record until interrupted.
func runTap() error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	url := strings.Replace(apiURL, "http", "ws", 1) + "/tap"
	header := http.Header{}
	if controlToken != "" {
		header.Set("X-API-Key", controlToken)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					fmt.Fprintf(os.Stderr, "read error: %v\n", err)
				}
				return
			}
			fmt.Fprintln(os.Stdout, string(message))
		}
	}()

	select {
	case <-done:
		return nil
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
}
