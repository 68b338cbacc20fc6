package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

type memSink struct {
	mu      sync.Mutex
	batches []coremetrics.BatchEvent
	stages  []coremetrics.StageEvent
}

func (m *memSink) RecordBatch(ev coremetrics.BatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, ev)
	return nil
}

func (m *memSink) RecordStage(ev coremetrics.StageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, ev)
	return nil
}

func TestEventCollectorForwards(t *testing.T) {
	bus := eventbus.New[any](8)
	sink := &memSink{}
	done := StartEventCollector(context.Background(), bus, sink)

	bus.Publish(coremetrics.StageEvent{Stage: "cdap", Households: 5})
	bus.Publish(coremetrics.MatrixLoadEvent{Name: "ignored by memSink"})
	bus.Publish("not an event")
	bus.Publish(coremetrics.BatchEvent{Worker: "w", Households: 5})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after bus close")
	}
	if len(sink.batches) != 1 || len(sink.stages) != 1 {
		t.Fatalf("unexpected records: %d batches %d stages", len(sink.batches), len(sink.stages))
	}
	if sink.stages[0].Stage != "cdap" {
		t.Fatalf("unexpected stage %+v", sink.stages[0])
	}
}

func TestEventCollectorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := eventbus.New[any](1)
	done := StartEventCollector(ctx, bus, coremetrics.NopSink{})
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop on cancel")
	}
	<-StartEventCollector(ctx, nil, nil)
}
