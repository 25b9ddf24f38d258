package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collectible-admin-system/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event types emitted after committed lifecycle transitions.
const (
	EventInitialized      = "lifecycle.initialized"
	EventPhaseAdvanced    = "phase.advanced"
	EventSeriesCompleted  = "series.completed"
	EventSeriesActivated  = "series.activated"
	EventExhausted        = "lifecycle.exhausted"
	EventPhasePaused      = "phase.paused"
	EventPhaseResumed     = "phase.resumed"
	EventPhaseDuration    = "config.phase_duration"
	EventSeriesGrowth     = "config.series_growth"
	EventSalesRecorded    = "sales.recorded"
	EventInventoryUpdated = "sales.inventory"
)

// LifecycleEvent is the audit record handed to telemetry sinks.
type LifecycleEvent struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	OccurredAt   time.Time              `json:"occurred_at"`
	Actor        string                 `json:"actor,omitempty"`
	SeriesNumber int                    `json:"series_number,omitempty"`
	PhaseNumber  int                    `json:"phase_number,omitempty"`
	Version      int64                  `json:"version"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// NewLifecycleEvent stamps an event with a fresh id.
func NewLifecycleEvent(eventType string, at time.Time) LifecycleEvent {
	return LifecycleEvent{ID: uuid.NewString(), Type: eventType, OccurredAt: at.UTC()}
}

// TelemetrySink receives events. Implementations may fail; the fan-out
// only logs and counts those failures.
type TelemetrySink interface {
	Name() string
	Publish(ctx context.Context, e LifecycleEvent) error
}

// Telemetry is the fire-and-forget side channel of the lifecycle engine.
type Telemetry interface {
	Emit(e LifecycleEvent)
}

// Fanout delivers each event to every sink on its own goroutine, bounded
// by a timeout. Emit never blocks the caller and never returns an error.
type Fanout struct {
	sinks   []TelemetrySink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewFanout(timeout time.Duration, sinks ...TelemetrySink) *Fanout {
	return &Fanout{sinks: sinks, timeout: timeout}
}

func (f *Fanout) Emit(e LifecycleEvent) {
	for _, sink := range f.sinks {
		f.wg.Add(1)
		go f.deliver(sink, e)
	}
}

func (f *Fanout) deliver(sink TelemetrySink, e LifecycleEvent) {
	defer f.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			metrics.TelemetryDropped(sink.Name())
			log.Error().Str("component", "telemetry").Str("sink", sink.Name()).
				Str("event", e.Type).Msgf("sink panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := sink.Publish(ctx, e); err != nil {
		metrics.TelemetryDropped(sink.Name())
		log.Warn().Err(err).Str("component", "telemetry").Str("sink", sink.Name()).
			Str("event", e.Type).Str("event_id", e.ID).Msg("telemetry delivery failed")
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in tests.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger zerolog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Publish(_ context.Context, e LifecycleEvent) error {
	s.Logger.Info().
		Str("component", "lifecycle").
		Str("event", e.Type).
		Str("event_id", e.ID).
		Int("series", e.SeriesNumber).
		Int("phase", e.PhaseNumber).
		Int64("version", e.Version).
		Fields(e.Data).
		Msg(fmt.Sprintf("📣 %s", e.Type))
	return nil
}

type noopTelemetry struct{}

func (noopTelemetry) Emit(LifecycleEvent) {}
