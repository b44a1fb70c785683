package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/adapter"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/config"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/localcmd"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
)

const doctorTimeout = 15 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Probe a running broker end to end",
	Long: `Checks a running broker the way a real client would: the health
endpoint, the WebSocket handshake, a channel join, and a local command
round-trip. Exits non-zero when any step fails.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	logger := monitoring.NewLogger(os.Stderr, "error", "pretty")
	cfg, err := config.Load(&logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("fail  %-28s %v\n", name, err)
			return
		}
		fmt.Printf("ok    %s\n", name)
	}

	healthDetail, err := checkHealth(ctx, cfg)
	report("health endpoint", err)
	if healthDetail != "" {
		fmt.Printf("      %s\n", healthDetail)
	}

	sock := adapter.NewSocket(adapter.SocketConfig{
		URL:            cfg.WebSocketURL(),
		RequestTimeout: 5 * time.Second,
	}, logger)
	defer sock.Close()

	err = sock.Connect(ctx)
	report("websocket handshake", err)
	if err != nil {
		return fmt.Errorf("broker is not reachable at %s", cfg.WebSocketURL())
	}

	probe := "doctor-" + uuid.NewString()[:8]
	report("channel join", sock.Join(ctx, probe))

	_, err = sock.RequestLocal(ctx, localcmd.CommandActiveChannels, nil)
	report("local command round-trip", err)

	diag, err := sock.RequestLocal(ctx, localcmd.CommandDiagnostics, nil)
	report("diagnostics", err)
	if err == nil {
		fmt.Printf("\n%s\n", diag)
	}

	if failed {
		return fmt.Errorf("broker probe failed")
	}
	return nil
}

func checkHealth(ctx context.Context, cfg *config.Config) (string, error) {
	url := fmt.Sprintf("http://%s/healthz", cfg.ListenAddr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var health struct {
		Status      string `json:"status"`
		UptimeS     int64  `json:"uptime_s"`
		Connections int    `json:"connections"`
		Channels    int    `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", fmt.Errorf("decoding health response: %w", err)
	}
	if health.Status != "ok" {
		return "", fmt.Errorf("status %q", health.Status)
	}
	return fmt.Sprintf("uptime %ds, %d connections, %d channels",
		health.UptimeS, health.Connections, health.Channels), nil
}
