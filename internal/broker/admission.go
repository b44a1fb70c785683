package broker

import (
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
)

// Rejection reasons reported by admission.
const (
	rejectRateLimited    = "rate_limited"
	rejectMaxConnections = "max_connections"
)

// admission gates new connections with a token bucket plus a hard cap on
// concurrent connections. The endpoint is loopback-only, so every peer
// shares one address; a single global bucket is the whole story.
type admission struct {
	limiter  *rate.Limiter
	maxConns int
	logger   zerolog.Logger
}

func newAdmission(ratePerSec float64, burst, maxConns int, logger zerolog.Logger) *admission {
	if ratePerSec <= 0 {
		ratePerSec = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &admission{
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), burst),
		maxConns: maxConns,
		logger:   logger.With().Str("component", "admission").Logger(),
	}
}

// allow reports whether a new connection may proceed given the current
// active count. On rejection it returns the reason label.
func (a *admission) allow(active int) (bool, string) {
	if a.maxConns > 0 && active >= a.maxConns {
		a.logger.Warn().Int("active", active).Int("max", a.maxConns).
			Msg("connection rejected: at capacity")
		monitoring.ConnectionsRejected.WithLabelValues(rejectMaxConnections).Inc()
		return false, rejectMaxConnections
	}
	if !a.limiter.Allow() {
		a.logger.Debug().Msg("connection rejected: rate limit exceeded")
		monitoring.ConnectionsRejected.WithLabelValues(rejectRateLimited).Inc()
		return false, rejectRateLimited
	}
	return true, ""
}
