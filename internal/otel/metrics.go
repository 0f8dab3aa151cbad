package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	taskOutcomesCounter metric.Int64Counter
	taskDuration        metric.Float64Histogram
	agentTurnsCounter   metric.Int64Counter
	agentTurnDuration   metric.Float64Histogram
	gateWaitDuration    metric.Float64Histogram
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		taskOutcomesCounter, err = m.Int64Counter("agentteam_task_outcomes_total", metric.WithDescription("Task terminal states (completed, failed, cancelled) by coordination pattern"))
		if err != nil {
			return
		}
		taskDuration, err = m.Float64Histogram("agentteam_task_duration_seconds", metric.WithDescription("Task execution duration in seconds"))
		if err != nil {
			return
		}
		agentTurnsCounter, err = m.Int64Counter("agentteam_agent_turns_total", metric.WithDescription("Total agent turns executed"))
		if err != nil {
			return
		}
		agentTurnDuration, err = m.Float64Histogram("agentteam_agent_turn_duration_seconds", metric.WithDescription("Agent turn duration in seconds"))
		if err != nil {
			return
		}
		gateWaitDuration, err = m.Float64Histogram("agentteam_gate_wait_seconds", metric.WithDescription("Time spent blocked on human-input and approval gates"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("agentteam_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("agentteam_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordTaskOutcome records a task reaching a terminal state and its duration.
func RecordTaskOutcome(ctx context.Context, pattern, status string, duration time.Duration) {
	if taskOutcomesCounter != nil {
		taskOutcomesCounter.Add(ctx, 1, metric.WithAttributes(AttrPattern.String(pattern), AttrStatus.String(status)))
	}
	if taskDuration != nil {
		taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrPattern.String(pattern), AttrStatus.String(status)))
	}
}

// RecordAgentTurn records an agent turn and its duration.
func RecordAgentTurn(ctx context.Context, agent string, duration time.Duration) {
	if agentTurnsCounter != nil {
		agentTurnsCounter.Add(ctx, 1, metric.WithAttributes(AttrAgent.String(agent)))
	}
	if agentTurnDuration != nil {
		agentTurnDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrAgent.String(agent)))
	}
}

// RecordGateWait records time spent blocked on a gate ("human_input" or "approval").
func RecordGateWait(ctx context.Context, gate string, outcome string, duration time.Duration) {
	if gateWaitDuration != nil {
		gateWaitDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrGate.String(gate), attribute.String("outcome", outcome)))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// TaskCountFunc returns (pending, running, completed, failed, cancelled) counts.
type TaskCountFunc func() (pending, running, completed, failed, cancelled int64)

// InitMetricsWithTaskCount creates instruments and optionally registers a callback for task gauges.
// Call after InitMeterProvider. If taskCount is nil, task gauges are not reported.
func InitMetricsWithTaskCount(ctx context.Context, taskCount TaskCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if taskCount == nil {
		return nil
	}
	m := Meter()
	tasksGauge, err := m.Float64ObservableGauge("agentteam_tasks_total", metric.WithDescription("Number of tasks by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		pending, running, completed, failed, cancelled := taskCount()
		o.ObserveFloat64(tasksGauge, float64(pending), metric.WithAttributes(AttrStatus.String("pending")))
		o.ObserveFloat64(tasksGauge, float64(running), metric.WithAttributes(AttrStatus.String("running")))
		o.ObserveFloat64(tasksGauge, float64(completed), metric.WithAttributes(AttrStatus.String("completed")))
		o.ObserveFloat64(tasksGauge, float64(failed), metric.WithAttributes(AttrStatus.String("failed")))
		o.ObserveFloat64(tasksGauge, float64(cancelled), metric.WithAttributes(AttrStatus.String("cancelled")))
		return nil
	}, tasksGauge)
	return err
}
