package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

type dummyToken struct{ err error }

func (d *dummyToken) Wait() bool                     { return true }
func (d *dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d *dummyToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (d *dummyToken) Error() error { return d.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type mockClient struct {
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, published{topic, qos, retained, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishBatch(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	p, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", QoS: 1}, "w1")
	require.NoError(t, err)
	assert.Equal(t, "ctramp-w1", mc.opts.ClientID)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "ctramp/workers/w1/status", mc.opts.WillTopic)
	assert.True(t, mc.opts.WillRetained)

	ev := coremetrics.BatchEvent{Worker: "w1", Partition: 2, First: 10, Last: 19, Households: 10, Duration: 1500 * time.Millisecond, Time: time.Unix(100, 0)}
	require.NoError(t, p.PublishBatch(ev))
	require.Len(t, mc.published, 1)
	msg := mc.published[0]
	assert.Equal(t, "ctramp/workers/w1/batch", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)
	var got batchMessage
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, batchMessage{Worker: "w1", Partition: 2, First: 10, Last: 19, Households: 10, Seconds: 1.5, Time: 100000}, got)
}

func TestPublishStatusRetained(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	p, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", TopicPrefix: "run7"}, "w2")
	require.NoError(t, err)
	require.NoError(t, p.PublishStatus(StatusDone))
	require.Len(t, mc.published, 1)
	assert.Equal(t, "run7/workers/w2/status", mc.published[0].topic)
	assert.True(t, mc.published[0].retained)
	assert.Contains(t, string(mc.published[0].payload), `"status":"done"`)
}

func TestPublishRetries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}}
	withMock(t, mc)
	p, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1}, "w1")
	require.NoError(t, err)
	require.NoError(t, p.PublishStatus(StatusRunning))
	assert.Len(t, mc.published, 3)
}

func TestPublishErrorCaptured(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}}
	withMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})
	p, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, "w3")
	require.NoError(t, err)
	if err := p.PublishBatch(coremetrics.BatchEvent{Worker: "w3"}); err == nil {
		t.Fatalf("expected error")
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["worker"] != "w3" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

func TestConnectError(t *testing.T) {
	withMock(t, &mockClient{connectErr: fmt.Errorf("refused")})
	if _, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883"}, "w1"); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestClientOptionsAuthAndTLS(t *testing.T) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS13}
	opts, err := NewClientOptions(Config{Broker: "ssl://b:8883", ClientID: "id", Username: "u", Password: "p", UseTLS: true, TLSConfig: tlsCfg})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.Same(t, tlsCfg, opts.TLSConfig)

	if _, err := NewClientOptions(Config{Broker: "ssl://b:8883", UseTLS: true}); err == nil {
		t.Fatalf("expected missing certificate error")
	}
	if _, err := NewClientOptions(Config{Broker: "ssl://b:8883", UseTLS: true, ClientCert: "x.pem", ClientKey: "x.key", CABundle: "ca.pem"}); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestForwardPublishesBatches(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	p, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883"}, "w1")
	require.NoError(t, err)
	bus := eventbus.New[any](8)
	stop := p.Forward(context.Background(), bus)
	bus.Publish(coremetrics.StageEvent{Stage: "ignored"})
	bus.Publish(coremetrics.BatchEvent{Worker: "w1", First: 0, Last: 4, Households: 5})
	bus.Publish(coremetrics.BatchEvent{Worker: "w1", First: 5, Last: 9, Households: 5})

	finished := make(chan struct{})
	go func() {
		stop()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("stop did not return")
	}
	require.Len(t, mc.published, 2)
	assert.Equal(t, "ctramp/workers/w1/batch", mc.published[0].topic)
	var msg batchMessage
	require.NoError(t, json.Unmarshal(mc.published[1].payload, &msg))
	assert.Equal(t, 5, msg.First)
	stop()
}

func TestForwardStopsOnBusClose(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	p, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883"}, "w1")
	require.NoError(t, err)
	bus := eventbus.New[any](8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := p.Forward(ctx, bus)
	bus.Publish(coremetrics.BatchEvent{Worker: "w1", First: 0, Last: 4, Households: 5})
	bus.Close()
	stop()
	require.Len(t, mc.published, 1)
}

func TestNopPublisher(t *testing.T) {
	var p ProgressPublisher = NopPublisher{}
	assert.NoError(t, p.PublishBatch(coremetrics.BatchEvent{}))
	assert.NoError(t, p.PublishStatus(StatusFailed))
	p.Disconnect()
}
