package eventbus

import (
	"context"
	"log/slog"
	"time"

	"WebResearcher/internal/domain"
)

// DefaultIdleTimeout is the stall window used when none is configured.
const DefaultIdleTimeout = 5 * time.Second

// Watch subscribes to bus and consumes it until the stream closes, calling
// onEvent for every event in order. Once answer streaming started (an
// analyzing or content-chunk event arrived) and until a terminal event is
// seen, a gap longer than idle makes the watchdog publish a partial final
// result built from the transcript. Earlier steps are bounded by the
// orchestrator's own deadlines. The bus keeps the first
// terminal write, so the watchdog loses cleanly to a run that finished first.
//
// Watch returns domain.ErrStalled when its partial result won.
func Watch(ctx context.Context, bus *Bus, idle time.Duration, onEvent func(domain.Event), logger *slog.Logger) (*Transcript, error) {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	events, err := bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	transcript := NewTranscript()
	timer := time.NewTimer(idle)
	timer.Stop()
	defer timer.Stop()

	stalled := false
	streaming := false
	for {
		select {
		case e, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return transcript, err
				}
				if stalled {
					return transcript, domain.ErrStalled
				}
				return transcript, nil
			}
			transcript.Add(e)
			if onEvent != nil {
				onEvent(e)
			}
			if e.Terminal() {
				timer.Stop()
				continue
			}
			if startsStreaming(e) {
				streaming = true
			}
			if streaming {
				timer.Reset(idle)
			}

		case <-timer.C:
			if _, done := transcript.Terminal(); done {
				continue
			}
			partial := transcript.PartialResult()
			if bus.Publish(domain.FinalResultEvent{FinalResult: partial}) {
				stalled = true
				if logger != nil {
					logger.Warn("stream stalled, finalizing with partial content",
						"idle", idle, "content_len", len(partial.Content), "sources", len(partial.Sources))
				}
			}

		case <-ctx.Done():
			return transcript, ctx.Err()
		}
	}
}

func startsStreaming(e domain.Event) bool {
	switch e.Kind() {
	case domain.KindAnalyzing, domain.KindContentChunk:
		return true
	default:
		return false
	}
}
