package metrics

import "time"

// BatchEvent reports a worker finishing a range of households.
type BatchEvent struct {
	Worker     string
	Partition  int
	First      int
	Last       int
	Households int
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records batch completions.
type MetricsSink interface {
	RecordBatch(ev BatchEvent) error
}

// MatrixLoadEvent reports a matrix cache lookup. Hit is false when the
// matrix was read from its source file.
type MatrixLoadEvent struct {
	Name     string
	Format   string
	Hit      bool
	Duration time.Duration
	Time     time.Time
}

// MatrixLoadRecorder records matrix cache lookups.
type MatrixLoadRecorder interface {
	RecordMatrixLoad(ev MatrixLoadEvent) error
}

// RemoteRetryEvent reports a failed remote attempt that will be retried.
type RemoteRetryEvent struct {
	Procedure string
	Attempt   int
	Error     string
	Time      time.Time
}

// RetryRecorder records remote retries.
type RetryRecorder interface {
	RecordRemoteRetry(ev RemoteRetryEvent) error
}

// StageEvent reports one model stage run over a batch of households.
type StageEvent struct {
	Stage      string
	Worker     string
	Households int
	Duration   time.Duration
	Time       time.Time
}

// StageRecorder records stage timings.
type StageRecorder interface {
	RecordStage(ev StageEvent) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordBatch(BatchEvent) error             { return nil }
func (NopSink) RecordMatrixLoad(MatrixLoadEvent) error   { return nil }
func (NopSink) RecordRemoteRetry(RemoteRetryEvent) error { return nil }
func (NopSink) RecordStage(StageEvent) error             { return nil }
