package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	"github.com/kilianp07/ctramp/infra/logger"
)

// InfluxSink writes run events to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback returns a NopSink when the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordBatch(ev coremetrics.BatchEvent) error {
	return s.write(write.NewPointWithMeasurement("household_batch").
		AddTag("worker", ev.Worker).
		AddTag("partition", strconv.Itoa(ev.Partition)).
		AddField("first", ev.First).
		AddField("last", ev.Last).
		AddField("households", ev.Households).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time))
}

func (s *InfluxSink) RecordMatrixLoad(ev coremetrics.MatrixLoadEvent) error {
	return s.write(write.NewPointWithMeasurement("matrix_request").
		AddTag("matrix", ev.Name).
		AddTag("format", ev.Format).
		AddTag("hit", strconv.FormatBool(ev.Hit)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time))
}

func (s *InfluxSink) RecordRemoteRetry(ev coremetrics.RemoteRetryEvent) error {
	return s.write(write.NewPointWithMeasurement("remote_retry").
		AddTag("procedure", ev.Procedure).
		AddField("attempt", ev.Attempt).
		AddField("error", ev.Error).
		SetTime(ev.Time))
}

func (s *InfluxSink) RecordStage(ev coremetrics.StageEvent) error {
	return s.write(write.NewPointWithMeasurement("model_stage").
		AddTag("stage", ev.Stage).
		AddTag("worker", ev.Worker).
		AddField("households", ev.Households).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time))
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
