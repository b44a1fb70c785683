package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/broker"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/config"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/figma"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/localcmd"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/sniffer"
)

var (
	flagPort     int
	flagLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the channel broker and the SSE migration sniffer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "broker port (overrides BRIDGE_PORT)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	bootLogger := monitoring.NewLogger(os.Stdout, "info", "json")
	cfg, err := config.Load(&bootLogger)
	if err != nil {
		return err
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := monitoring.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	cfg.LogConfig(logger)

	creds, err := figma.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Warn().Err(err).Msg("credential blob unreadable, REST tools need FIGMA_ACCESS_TOKEN")
	}
	if cfg.AccessToken != "" {
		creds.AccessToken = cfg.AccessToken
	}
	if cfg.RefreshToken != "" {
		creds.RefreshToken = cfg.RefreshToken
	}
	if cfg.DefaultFileKey != "" {
		creds.DefaultFileKey = cfg.DefaultFileKey
	}

	notifier := &localcmd.DesktopNotifier{Logger: logger}
	registry := localcmd.NewRegistry(localcmd.Deps{
		Figma:    figma.NewClient(cfg.FigmaAPIBase, creds, logger),
		Notifier: notifier,
		Port:     cfg.Port,
		Logger:   logger,
	})

	events := &broker.Events{
		ClientConnected: func(id string) {
			logger.Debug().Str("conn", id).Msg("client connected")
		},
		ClientDisconnected: func(id, reason string) {
			logger.Debug().Str("conn", id).Str("reason", reason).Msg("client disconnected")
		},
		ChannelCreated: func(name string) {
			logger.Info().Str("channel", name).Msg("channel created")
		},
		ChannelDeleted: func(name string) {
			logger.Info().Str("channel", name).Msg("channel deleted")
		},
	}

	srv := broker.NewServer(cfg, logger, events, registry)
	registry.BindState(srv)

	snf := sniffer.New(sniffer.Config{
		Addr:   cfg.SSEListenAddr(),
		Window: cfg.SnifferWindow,
	}, logger, func() {
		logger.Warn().Msg("an MCP client is still configured for the removed SSE transport")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = notifier.Notify(ctx, "Figma bridge",
			"An MCP client tried the removed SSE transport. Update its config to the stdio server.")
	})
	if err := snf.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		snf.Stop()
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	snf.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrain+2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}
	return <-errCh
}
