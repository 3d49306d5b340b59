package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks agent session starts, denials, and token usage.
type SessionMetrics struct {
	started *prometheus.CounterVec
	denied  *prometheus.CounterVec
	tokens  *prometheus.HistogramVec
}

// NewSessionMetrics registers the session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	started := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started",
		Help:      "Sessions approved and opened, labeled by agent.",
	}, []string{"agent"})
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_denied",
		Help:      "Sessions refused by the limiter, labeled by agent and reason.",
	}, []string{"agent", "reason"})
	tokens := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_tokens_total",
		Help:      "Total tokens consumed per finalized session.",
		Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000},
	}, []string{"agent"})
	reg.MustRegister(started, denied, tokens)
	return &SessionMetrics{
		started: started,
		denied:  denied,
		tokens:  tokens,
	}
}

// IncStarted counts an approved session for the named agent.
func (s *SessionMetrics) IncStarted(agent string) {
	if s == nil || s.started == nil {
		return
	}
	s.started.WithLabelValues(normalizeLabel(agent)).Inc()
}

// IncDenied counts a refused session with the limiter's reason.
func (s *SessionMetrics) IncDenied(agent, reason string) {
	if s == nil || s.denied == nil {
		return
	}
	s.denied.WithLabelValues(normalizeLabel(agent), normalizeLabel(reason)).Inc()
}

// ObserveTokens records total token usage for a finalized session.
func (s *SessionMetrics) ObserveTokens(agent string, tokens int64) {
	if s == nil || s.tokens == nil {
		return
	}
	s.tokens.WithLabelValues(normalizeLabel(agent)).Observe(float64(tokens))
}
