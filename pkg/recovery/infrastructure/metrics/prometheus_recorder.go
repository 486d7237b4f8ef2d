package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	metrics "github.com/tigerroll/tidal/pkg/recovery/core/metrics"
	logger "github.com/tigerroll/tidal/pkg/recovery/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Execution Metrics
	executionDurationSeconds *prometheus.HistogramVec
	executionStatusCounter   *prometheus.CounterVec

	// Wave Metrics
	waveDurationSeconds *prometheus.HistogramVec
	waveStatusCounter   *prometheus.CounterVec

	// Launch / Token / Concurrency Metrics
	serverLaunchCounter    *prometheus.CounterVec
	tokenOutcomeCounter    *prometheus.CounterVec
	versionConflictCounter *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		executionDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recovery_execution_duration_seconds",
			Help:    "Duration of recovery executions from start to terminal status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"plan_id", "status"}),
		executionStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_execution_status_total",
			Help: "Total number of recovery executions by status.",
		}, []string{"plan_id", "status"}),
		waveDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recovery_wave_duration_seconds",
			Help:    "Duration of wave executions from start to terminal status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		waveStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_wave_status_total",
			Help: "Total number of wave executions by status.",
		}, []string{"status"}),
		serverLaunchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_server_launch_total",
			Help: "Total servers reaching a terminal launch state.",
		}, []string{"state"}),
		tokenOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_token_outcome_total",
			Help: "Total callback token actions by outcome.",
		}, []string{"outcome"}),
		versionConflictCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_version_conflict_total",
			Help: "Total optimistic-concurrency conflicts on conditional writes.",
		}, []string{"execution_id"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recovery_operation_duration_seconds",
			Help:    "Duration of named internal operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.executionDurationSeconds)
	registry.MustRegister(r.executionStatusCounter)
	registry.MustRegister(r.waveDurationSeconds)
	registry.MustRegister(r.waveStatusCounter)
	registry.MustRegister(r.serverLaunchCounter)
	registry.MustRegister(r.tokenOutcomeCounter)
	registry.MustRegister(r.versionConflictCounter)
	registry.MustRegister(r.operationDurationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordExecutionStart records the start of a RecoveryExecution.
func (r *PrometheusRecorder) RecordExecutionStart(ctx context.Context, execution *model.RecoveryExecution) {
	r.executionStatusCounter.WithLabelValues(execution.PlanID, execution.Status.String()).Inc()
	logger.Debugf("Metrics: execution %s started for plan %s.", execution.ID, execution.PlanID)
}

// RecordExecutionEnd records an execution reaching a terminal status.
func (r *PrometheusRecorder) RecordExecutionEnd(ctx context.Context, execution *model.RecoveryExecution) {
	r.executionStatusCounter.WithLabelValues(execution.PlanID, execution.Status.String()).Inc()
	if execution.StartTime == nil || execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(*execution.StartTime).Seconds()
	r.executionDurationSeconds.WithLabelValues(execution.PlanID, execution.Status.String()).Observe(duration)
	logger.Debugf("Metrics: execution %s ended as %s. Duration: %.3fs", execution.ID, execution.Status, duration)
}

// RecordWaveStart records the start of a WaveExecution.
func (r *PrometheusRecorder) RecordWaveStart(ctx context.Context, wave *model.WaveExecution) {
	r.waveStatusCounter.WithLabelValues(wave.Status.String()).Inc()
}

// RecordWaveEnd records a wave reaching a terminal status.
func (r *PrometheusRecorder) RecordWaveEnd(ctx context.Context, wave *model.WaveExecution) {
	r.waveStatusCounter.WithLabelValues(wave.Status.String()).Inc()
	if wave.StartedAt == nil || wave.EndedAt == nil {
		return
	}
	duration := wave.EndedAt.Sub(*wave.StartedAt).Seconds()
	r.waveDurationSeconds.WithLabelValues(wave.Status.String()).Observe(duration)
}

// RecordServerLaunch records one server reaching a terminal launch state.
func (r *PrometheusRecorder) RecordServerLaunch(ctx context.Context, executionID string, state model.LaunchState) {
	r.serverLaunchCounter.WithLabelValues(state.String()).Inc()
}

// RecordTokenOutcome records the result of acting on a callback token.
func (r *PrometheusRecorder) RecordTokenOutcome(ctx context.Context, outcome string) {
	r.tokenOutcomeCounter.WithLabelValues(outcome).Inc()
}

// RecordVersionConflict records one optimistic-concurrency conflict on a conditional write.
func (r *PrometheusRecorder) RecordVersionConflict(ctx context.Context, executionID string) {
	r.versionConflictCounter.WithLabelValues(executionID).Inc()
}

// RecordDuration records the execution time of a specific operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
