package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/ctramp/core/factory"
	coremetrics "github.com/kilianp07/ctramp/core/metrics"
)

func influxServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(b)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordBatch(t *testing.T) {
	srv, bodies := influxServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.BatchEvent{Worker: "w2", Partition: 1, First: 100, Last: 199, Households: 100, Duration: 1500 * time.Millisecond, Time: now}
	if err := sink.RecordBatch(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	exp := lineProtocol(write.NewPointWithMeasurement("household_batch").
		AddTag("worker", "w2").
		AddTag("partition", "1").
		AddField("first", 100).
		AddField("last", 199).
		AddField("households", 100).
		AddField("duration_ms", 1500.0).
		SetTime(now))
	if got := bodies(); len(got) != 1 || got[0] != exp {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestInfluxSink_RecordMatrixLoadAndStage(t *testing.T) {
	srv, bodies := influxServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Now()
	if err := sink.RecordMatrixLoad(coremetrics.MatrixLoadEvent{Name: "DIST", Format: "zmx", Hit: true, Time: now}); err != nil {
		t.Fatalf("record load: %v", err)
	}
	if err := sink.RecordStage(coremetrics.StageEvent{Stage: "imtod", Worker: "w", Households: 3, Duration: 2 * time.Millisecond, Time: now}); err != nil {
		t.Fatalf("record stage: %v", err)
	}
	exp := []string{
		lineProtocol(write.NewPointWithMeasurement("matrix_request").
			AddTag("matrix", "DIST").
			AddTag("format", "zmx").
			AddTag("hit", "true").
			AddField("duration_ms", 0.0).
			SetTime(now)),
		lineProtocol(write.NewPointWithMeasurement("model_stage").
			AddTag("stage", "imtod").
			AddTag("worker", "w").
			AddField("households", 3).
			AddField("duration_ms", 2.0).
			SetTime(now)),
	}
	got := bodies()
	if len(got) != 2 || got[0] != exp[0] || got[1] != exp[1] {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink on failing health check, got %T", sink)
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestInfluxSinkFromConfig(t *testing.T) {
	if _, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": "http://influx"}}}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "influx", Conf: map[string]any{"url": srv.URL, "bucket": "ctramp"}},
		{Type: "nop"},
	})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, ok := sink.(*coremetrics.MultiSink); !ok {
		t.Fatalf("expected MultiSink got %T", sink)
	}
}
