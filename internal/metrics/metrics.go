// Package metrics exposes Prometheus metrics for game activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricSessionsStarted  = "campusguess_sessions_started_total"
	MetricSessionsFinished = "campusguess_sessions_finished_total"
	MetricSessionStartFail = "campusguess_session_start_failures_total"
	MetricGuessScore       = "campusguess_guess_score"
	MetricGuessDistance    = "campusguess_guess_distance_miles"
	MetricLiveSessions     = "campusguess_live_sessions"
	MetricLeaderboardCache = "campusguess_leaderboard_cache_total"
)

// Game holds the game collectors. All methods are safe for concurrent use.
type Game struct {
	sessionsStarted  *prometheus.CounterVec
	sessionsFinished prometheus.Counter
	startFailures    *prometheus.CounterVec
	guessScore       prometheus.Histogram
	guessDistance    prometheus.Histogram
	liveSessions     prometheus.Gauge
	leaderboardCache *prometheus.CounterVec
}

// NewGame creates the collectors without registering them.
func NewGame() *Game {
	return &Game{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSessionsStarted,
			Help: "Sessions started, by mode (solo or lobby).",
		}, []string{"mode"}),
		sessionsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSessionsFinished,
			Help: "Sessions that reached the finished state.",
		}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSessionStartFail,
			Help: "Session starts that failed, by reason.",
		}, []string{"reason"}),
		guessScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricGuessScore,
			Help:    "Points awarded per guess.",
			Buckets: []float64{0, 500, 1000, 2000, 3000, 4000, 4500, 4900, 5000},
		}),
		guessDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricGuessDistance,
			Help:    "Distance between guess and target in miles.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 3, 10},
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLiveSessions,
			Help: "Sessions currently held in memory.",
		}),
		leaderboardCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLeaderboardCache,
			Help: "Leaderboard cache lookups, by result (hit, miss, error).",
		}, []string{"result"}),
	}
}

func (m *Game) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsStarted,
		m.sessionsFinished,
		m.startFailures,
		m.guessScore,
		m.guessDistance,
		m.liveSessions,
		m.leaderboardCache,
	}
}

// Register registers all collectors with reg.
func (m *Game) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Game) SessionStarted(lobby bool) {
	mode := "solo"
	if lobby {
		mode = "lobby"
	}
	m.sessionsStarted.WithLabelValues(mode).Inc()
}

func (m *Game) SessionStartFailed(reason string) { m.startFailures.WithLabelValues(reason).Inc() }
func (m *Game) SessionFinished()                 { m.sessionsFinished.Inc() }

func (m *Game) Guess(score int, distanceMiles float64) {
	m.guessScore.Observe(float64(score))
	m.guessDistance.Observe(distanceMiles)
}

func (m *Game) SetLiveSessions(n int) { m.liveSessions.Set(float64(n)) }

func (m *Game) LeaderboardCache(result string) { m.leaderboardCache.WithLabelValues(result).Inc() }

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
