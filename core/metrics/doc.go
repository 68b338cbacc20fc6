// Package metrics defines the events a model run reports and the sinks that
// record them. Every sink records batch completions; sinks that also
// implement one of the Recorder interfaces receive matrix loads, remote
// retries or stage timings. Sinks are built from configuration through
// NewMetricsSink and fan out with MultiSink when several are configured.
package metrics
