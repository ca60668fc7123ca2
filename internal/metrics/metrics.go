package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric this module exposes. A nil
// *Metrics is valid: every Observe* method is a no-op on a nil
// receiver, so components can be constructed without metrics wired in
// (e.g. from tests).
type Metrics struct {
	// Builder metrics
	PacksBuiltTotal    *prometheus.CounterVec
	PackSizeBytes      *prometheus.HistogramVec
	InstructionsPacked prometheus.Counter

	// Execution metrics
	ExecutionsTotal     *prometheus.CounterVec
	ExecutionDuration   *prometheus.HistogramVec
	ExecutionAttempts   *prometheus.HistogramVec
	FeeTierEscalations  *prometheus.CounterVec
	BatchSizeHistogram  prometheus.Histogram
	InFlightExecutions  prometheus.Gauge

	// RPC call metrics
	RPCCallsTotal   *prometheus.CounterVec
	RPCCallDuration *prometheus.HistogramVec
	RPCErrorsTotal  *prometheus.CounterVec

	// Blockhash cache metrics
	BlockhashCacheHitsTotal   prometheus.Counter
	BlockhashCacheMissesTotal prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerStateChanges *prometheus.CounterVec
}

// New creates and registers every metric against registry (the
// process default registerer when nil).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		PacksBuiltTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solanatx_packs_built_total",
				Help: "Total number of instruction packs finalized by the builder",
			},
			[]string{"mode"},
		),
		PackSizeBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solanatx_pack_size_bytes",
				Help:    "Serialized size of emitted transaction packs",
				Buckets: []float64{100, 250, 500, 750, 1000, 1100, 1200, 1232, 1500},
			},
			[]string{"mode"},
		),
		InstructionsPacked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "solanatx_instructions_packed_total",
				Help: "Total number of instructions admitted into packs",
			},
		),

		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solanatx_executions_total",
				Help: "Total number of transaction execution attempts, by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solanatx_execution_duration_seconds",
				Help:    "Time from first submission to terminal outcome for one transaction",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		),
		ExecutionAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solanatx_execution_attempts",
				Help:    "Number of priority-fee tiers attempted before a terminal outcome",
				Buckets: []float64{1, 2, 3, 4, 5, 6},
			},
			[]string{"outcome"},
		),
		FeeTierEscalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solanatx_fee_tier_escalations_total",
				Help: "Total number of priority-fee tier escalations",
			},
			[]string{"tier"},
		),
		BatchSizeHistogram: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solanatx_batch_size",
				Help:    "Number of transactions submitted per execution batch",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 50, 100},
			},
		),
		InFlightExecutions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "solanatx_in_flight_executions",
				Help: "Number of transaction executions currently holding a semaphore slot",
			},
		),

		RPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solanatx_rpc_calls_total",
				Help: "Total number of JSON-RPC calls made to Solana endpoints",
			},
			[]string{"method"},
		),
		RPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solanatx_rpc_call_duration_seconds",
				Help:    "Duration of JSON-RPC calls to Solana endpoints",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method"},
		),
		RPCErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solanatx_rpc_errors_total",
				Help: "Total number of JSON-RPC errors, categorized by error type",
			},
			[]string{"method", "error_type"},
		),

		BlockhashCacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "solanatx_blockhash_cache_hits_total",
				Help: "Total number of blockhash cache reads served without an RPC round-trip",
			},
		),
		BlockhashCacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "solanatx_blockhash_cache_misses_total",
				Help: "Total number of blockhash cache reads that triggered an RPC fetch",
			},
		),

		CircuitBreakerStateChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solanatx_circuit_breaker_state_changes_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "to"},
		),
	}
}

// ObservePackBuilt records a finalized pack's serialized size.
func (m *Metrics) ObservePackBuilt(mode string, sizeBytes int, instructionCount int) {
	if m == nil {
		return
	}
	m.PacksBuiltTotal.WithLabelValues(mode).Inc()
	m.PackSizeBytes.WithLabelValues(mode).Observe(float64(sizeBytes))
	m.InstructionsPacked.Add(float64(instructionCount))
}

// ObserveExecution records one transaction's terminal outcome.
func (m *Metrics) ObserveExecution(outcome string, duration time.Duration, attempts int) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.ExecutionAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}

// ObserveFeeTierEscalation records a retry moving to a higher
// priority-fee tier.
func (m *Metrics) ObserveFeeTierEscalation(tier int) {
	if m == nil {
		return
	}
	m.FeeTierEscalations.WithLabelValues(formatAttempt(tier)).Inc()
}

// ObserveBatch records the size of one execution batch.
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSizeHistogram.Observe(float64(size))
}

// IncInFlight / DecInFlight track the in-flight execution gauge.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlightExecutions.Inc()
}

func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlightExecutions.Dec()
}

// ObserveRPCCall records one JSON-RPC call's duration and, on failure,
// categorizes the error.
func (m *Metrics) ObserveRPCCall(method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallsTotal.WithLabelValues(method).Inc()
	m.RPCCallDuration.WithLabelValues(method).Observe(duration.Seconds())

	if err != nil {
		errorType := "unknown"
		if errStr := strings.ToLower(err.Error()); errStr != "" {
			switch {
			case contains(errStr, "timeout"):
				errorType = "timeout"
			case contains(errStr, "rate limit"), contains(errStr, "429"):
				errorType = "rate_limit"
			case contains(errStr, "connection"):
				errorType = "connection"
			case contains(errStr, "blockhash not found"):
				errorType = "blockhash_not_found"
			default:
				errorType = "other"
			}
		}
		m.RPCErrorsTotal.WithLabelValues(method, errorType).Inc()
	}
}

// ObserveBlockhashCacheHit / ObserveBlockhashCacheMiss record a
// blockhash cache lookup's outcome.
func (m *Metrics) ObserveBlockhashCacheHit() {
	if m == nil {
		return
	}
	m.BlockhashCacheHitsTotal.Inc()
}

func (m *Metrics) ObserveBlockhashCacheMiss() {
	if m == nil {
		return
	}
	m.BlockhashCacheMissesTotal.Inc()
}

// ObserveCircuitBreakerStateChange records a breaker transition.
func (m *Metrics) ObserveCircuitBreakerStateChange(breaker, to string) {
	if m == nil {
		return
	}
	m.CircuitBreakerStateChanges.WithLabelValues(breaker, to).Inc()
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func formatAttempt(attempt int) string {
	if attempt <= 5 {
		return string(rune('0' + attempt))
	}
	return "5+"
}
