package metrics

import "github.com/kilianp07/ctramp/core/factory"

var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a sink factory under name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// NewMetricsSink builds the configured sinks. No configuration yields a
// NopSink and several yield a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	switch len(cfgs) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks.Create(cfgs[0])
	}
	out := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinks.Create(c)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return NewMultiSink(out...), nil
}
