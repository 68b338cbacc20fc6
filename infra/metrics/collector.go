package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	"github.com/kilianp07/ctramp/infra/logger"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

// StartEventCollector records the batch and stage events published on bus
// until ctx is canceled or the bus closes. The returned channel is closed
// when the collector stops.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[any], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev any) error {
	switch e := ev.(type) {
	case coremetrics.BatchEvent:
		return sink.RecordBatch(e)
	case coremetrics.StageEvent:
		if r, ok := sink.(coremetrics.StageRecorder); ok {
			return r.RecordStage(e)
		}
	case coremetrics.MatrixLoadEvent:
		if r, ok := sink.(coremetrics.MatrixLoadRecorder); ok {
			return r.RecordMatrixLoad(e)
		}
	}
	return nil
}
