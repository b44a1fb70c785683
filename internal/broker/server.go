package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/config"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/localcmd"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

const housekeepingInterval = time.Minute

// Server owns the WebSocket endpoint, the channel registry, and the HTTP
// sidecar surface (health, stats, metrics). It implements
// localcmd.BrokerState so the introspection commands can read live state.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	events *Events

	reg       *channelRegistry
	tracker   *requestTracker
	router    *router
	admission *admission
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*Connection]struct{}

	connSeq   atomic.Uint64
	startedAt time.Time

	httpServer *http.Server
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer wires the broker together. The local registry may not have its
// state bound yet; callers bind it to the returned server.
func NewServer(cfg *config.Config, logger zerolog.Logger, events *Events, local *localcmd.Registry) *Server {
	if events == nil {
		events = &Events{}
	}
	s := &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "broker").Logger(),
		events: events,
		reg:    newChannelRegistry(),
		conns:  make(map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Loopback-only bind; browser origins are irrelevant here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.tracker = newRequestTracker(cfg.StuckAfter)
	s.admission = newAdmission(cfg.ConnRate, cfg.ConnBurst, cfg.MaxConnections, s.logger)
	s.router = newRouter(s.reg, s.tracker, local, events, s.logger, cfg.RequestTimeout)
	// Built here, never reassigned: Shutdown runs on the signal path and may
	// fire before Start.
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ActiveChannels implements localcmd.BrokerState.
func (s *Server) ActiveChannels() []localcmd.ChannelInfo {
	return s.reg.activeChannels()
}

// Uptime implements localcmd.BrokerState.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// Handler exposes the HTTP surface for tests and for Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start binds the loopback listener and serves until Shutdown. A busy port
// is a fail-fast error; the process must not limp along without its
// endpoint.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.cfg.ListenAddr(), err)
	}
	go s.housekeeping()
	s.logger.Info().Str("addr", s.cfg.ListenAddr()).Msg("broker listening")
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving %s: %w", s.cfg.ListenAddr(), err)
	}
	return nil
}

// Shutdown stops accepting connections, drains outbound queues within the
// configured window, and closes every remaining connection with the
// shutdown reason.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		err = s.httpServer.Shutdown(ctx)

		deadline := time.Now().Add(s.cfg.ShutdownDrain)
		s.mu.Lock()
		open := make([]*Connection, 0, len(s.conns))
		for c := range s.conns {
			open = append(open, c)
		}
		s.mu.Unlock()

		var wg sync.WaitGroup
		for _, c := range open {
			wg.Add(1)
			go func(c *Connection) {
				defer wg.Done()
				c.drainAndClose(deadline)
			}(c)
		}
		wg.Wait()
		s.logger.Info().Int("connections", len(open)).Msg("broker stopped")
	})
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	active := len(s.conns)
	s.mu.Unlock()
	if ok, reason := s.admission.allow(active); !ok {
		status := http.StatusServiceUnavailable
		if reason == rejectRateLimited {
			status = http.StatusTooManyRequests
		}
		http.Error(w, reason, status)
		return
	}

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	id := fmt.Sprintf("conn-%d", s.connSeq.Add(1))
	c := newConnection(id, sock, s, s.logger)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	monitoring.ConnectionsTotal.Inc()
	monitoring.ConnectionsActive.Inc()
	s.events.clientConnected(id)
	s.logger.Info().Str("conn", id).Str("remote", r.RemoteAddr).Msg("client connected")

	c.enqueue(protocol.Welcome())
	go c.writePump()
	go c.readPump()
}

// dropConnection is the single teardown point, reached from the read pump's
// exit. It removes the connection from every channel, deletes channels it
// emptied, and publishes the disconnect.
func (s *Server) dropConnection(c *Connection) {
	s.mu.Lock()
	if _, tracked := s.conns[c]; !tracked {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c)
	s.mu.Unlock()

	emptied := s.reg.removeConnection(c)
	monitoring.ChannelsActive.Set(float64(s.reg.count()))
	for _, name := range emptied {
		s.events.channelDeleted(name)
		s.logger.Debug().Str("channel", name).Msg("channel deleted")
	}
	s.tracker.dropSender(c.id)

	monitoring.ConnectionsActive.Dec()
	monitoring.DisconnectsTotal.WithLabelValues(c.closeReason).Inc()
	s.events.clientDisconnected(c.id, c.closeReason)
	s.logger.Info().Str("conn", c.id).Str("reason", c.closeReason).Msg("client disconnected")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.mu.Lock()
	active := len(s.conns)
	s.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"uptime_s":    int64(s.Uptime().Seconds()),
		"connections": active,
		"channels":    s.reg.count(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uptime_s": int64(s.Uptime().Seconds()),
		"channels": s.reg.activeChannels(),
		"tracked":  s.tracker.len(),
	})
}

// housekeeping sweeps analytics entries whose responses never arrived.
func (s *Server) housekeeping() {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.tracker.sweep(); n > 0 {
				s.logger.Debug().Int("count", n).Msg("swept stale request entries")
			}
		case <-s.done:
			return
		}
	}
}
