// Package sniffer watches the retired SSE port for a short window after
// startup. Legacy MCP clients still configured for the old transport get a
// machine-readable migration response, and the first sighting fires a
// callback so the shell can tell the user to update their client config.
package sniffer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
)

const (
	// DefaultWindow is how long the listener stays up when nothing hits it.
	DefaultWindow = time.Minute

	migrationError = "sse_transport_removed"
	stopTimeout    = 2 * time.Second
)

type migrationBody struct {
	Error     string     `json:"error"`
	Message   string     `json:"message"`
	Migration *migration `json:"migration,omitempty"`
}

type migration struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Config tunes the listener.
type Config struct {
	Addr   string
	Window time.Duration
}

// Sniffer is the one-shot legacy listener. Start binds it; the first request
// observed, or the window elapsing, shuts it down.
type Sniffer struct {
	cfg     Config
	logger  zerolog.Logger
	onSniff func()

	srv      *http.Server
	addrMu   sync.Mutex
	addr     string
	seenOnce sync.Once
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a sniffer. onSniff may be nil; it is called at most once, from
// the handler goroutine of the first observed request.
func New(cfg Config, logger zerolog.Logger, onSniff func()) *Sniffer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Sniffer{
		cfg:     cfg,
		logger:  logger.With().Str("component", "sniffer").Logger(),
		onSniff: onSniff,
		stopped: make(chan struct{}),
	}
}

// Start binds the legacy port and arms the shutdown window. A port that is
// already taken only disables the sniffer; the bridge runs on without it.
func (s *Sniffer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.logger.Warn().Err(err).Str("addr", s.cfg.Addr).Msg("legacy port unavailable, sniffer disabled")
		s.stopOnce.Do(func() { close(s.stopped) })
		return nil
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Warn().Err(err).Msg("sniffer serve failed")
		}
	}()
	go s.expireAfterWindow()

	s.logger.Info().Str("addr", s.cfg.Addr).Dur("window", s.cfg.Window).Msg("watching legacy SSE port")
	return nil
}

// Stopped is closed once the listener is down, whether by sighting, window
// expiry, or Stop.
func (s *Sniffer) Stopped() <-chan struct{} { return s.stopped }

// Addr reports the bound address, empty when the port was unavailable.
func (s *Sniffer) Addr() string {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addr
}

// Stop tears the listener down. Safe to call at any time, including when the
// port never bound.
func (s *Sniffer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.srv == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("sniffer shutdown")
		}
	})
}

func (s *Sniffer) expireAfterWindow() {
	timer := time.NewTimer(s.cfg.Window)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.logger.Debug().Msg("no legacy clients observed, closing sniffer")
		s.Stop()
	case <-s.stopped:
	}
}

func (s *Sniffer) handle(w http.ResponseWriter, r *http.Request) {
	monitoring.SnifferRequests.WithLabelValues(r.URL.Path).Inc()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && r.URL.Path == "/sse" {
		w.Header().Set("Upgrade", "stdio")
		w.WriteHeader(http.StatusUpgradeRequired)
		_ = json.NewEncoder(w).Encode(migrationBody{
			Error:     migrationError,
			Message:   "The SSE transport has been removed. Point your MCP client at the installed stdio server instead.",
			Migration: &migration{From: "sse", To: "stdio"},
		})
	} else {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(migrationBody{
			Error:   migrationError,
			Message: "This port only serves the SSE migration notice.",
		})
	}

	s.seenOnce.Do(func() {
		s.logger.Info().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("legacy SSE client detected")
		if s.onSniff != nil {
			s.onSniff()
		}
		go s.Stop()
	})
}
