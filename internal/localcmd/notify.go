package localcmd

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

// DesktopNotifier surfaces notifications through the host OS. Success means
// the shell accepted the request, not that the user saw it.
type DesktopNotifier struct {
	Logger zerolog.Logger
}

func (n *DesktopNotifier) Notify(ctx context.Context, title, message string) error {
	if title == "" {
		title = "TalkToFigma"
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			strconv.Quote(message), strconv.Quote(title))
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	case "linux":
		cmd = exec.CommandContext(ctx, "notify-send", title, message)
	default:
		// No portable shell hook; the log record is the notification.
		n.Logger.Info().Str("title", title).Str("message", message).Msg("notification")
		return nil
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notification command: %w", err)
	}
	return nil
}

// LogNotifier records notifications instead of displaying them. Used in
// headless runs and tests.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, title, message string) error {
	n.Logger.Info().Str("title", title).Str("message", message).Msg("notification")
	return nil
}
