package metrics

// MultiSink forwards events to several sinks and stops at the first error.
type MultiSink struct {
	Sinks []MetricsSink
}

func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordBatch(ev BatchEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordBatch(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordMatrixLoad forwards to the sinks implementing MatrixLoadRecorder.
func (m *MultiSink) RecordMatrixLoad(ev MatrixLoadEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(MatrixLoadRecorder); ok {
			if err := r.RecordMatrixLoad(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRemoteRetry forwards to the sinks implementing RetryRecorder.
func (m *MultiSink) RecordRemoteRetry(ev RemoteRetryEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(RetryRecorder); ok {
			if err := r.RecordRemoteRetry(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStage forwards to the sinks implementing StageRecorder.
func (m *MultiSink) RecordStage(ev StageEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(StageRecorder); ok {
			if err := r.RecordStage(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
