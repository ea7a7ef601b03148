package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jatanrathod13/researcher/config"
)

// Telemetry tracks workflow and LLM metrics. All methods are no-ops when
// telemetry is disabled.
type Telemetry struct {
	cfg    config.TelemetryConfig
	logger *log.Logger

	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	factsRecorded     prometheus.Counter
	llmRequests       *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
}

// NewLogger returns a prefixed logger in the house style.
func NewLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), "["+prefix+"] ", log.LstdFlags)
}

// New creates a telemetry instance registered on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a private registry.
func New(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Telemetry{
		cfg:    cfg,
		logger: NewLogger("TELEMETRY"),
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "researcher_sessions_started_total",
			Help: "Number of research sessions started.",
		}),
		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "researcher_sessions_completed_total",
			Help: "Number of research sessions finished, by outcome.",
		}, []string{"outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "researcher_stage_duration_seconds",
			Help:    "Wall time spent in each workflow stage.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"stage"}),
		factsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "researcher_facts_recorded_total",
			Help: "Facts appended to session fact stores.",
		}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "researcher_llm_requests_total",
			Help: "Completion requests issued, by model and status.",
		}, []string{"model", "status"}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "researcher_llm_tokens_total",
			Help: "Tokens consumed by completions, by direction.",
		}, []string{"direction"}),
	}
}

func (t *Telemetry) SessionStarted() {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.sessionsStarted.Inc()
}

func (t *Telemetry) SessionCompleted(outcome string) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.sessionsCompleted.WithLabelValues(outcome).Inc()
}

func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *Telemetry) FactRecorded() {
	if t == nil || !t.cfg.Enabled {
		return
	}
	t.factsRecorded.Inc()
}

func (t *Telemetry) LLMRequest(model string, err error, inTokens, outTokens int64) {
	if t == nil || !t.cfg.Enabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.llmRequests.WithLabelValues(model, status).Inc()
	if inTokens > 0 {
		t.llmTokens.WithLabelValues("input").Add(float64(inTokens))
	}
	if outTokens > 0 {
		t.llmTokens.WithLabelValues("output").Add(float64(outTokens))
	}
}
