// Package mqtt publishes worker progress to an MQTT broker so operators can
// follow a distributed run.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
	"github.com/kilianp07/ctramp/infra/logger"
	"github.com/kilianp07/ctramp/internal/eventbus"
)

// Worker status values published retained on the status topic.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusOffline = "offline"
)

// Config holds the broker connection and topic settings.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "ctramp"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// ProgressPublisher reports batches and worker status.
type ProgressPublisher interface {
	PublishBatch(ev coremetrics.BatchEvent) error
	PublishStatus(status string) error
	Disconnect()
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) PublishBatch(coremetrics.BatchEvent) error { return nil }
func (NopPublisher) PublishStatus(string) error                { return nil }
func (NopPublisher) Disconnect()                               {}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoPublisher implements ProgressPublisher with Eclipse Paho.
type PahoPublisher struct {
	cli     pahoClient
	worker  string
	prefix  string
	qos     byte
	retries int
	backoff time.Duration
	log     logger.Logger
}

// NewPahoPublisher connects as worker. The broker marks the worker offline
// if the connection drops.
func NewPahoPublisher(cfg Config, worker string) (*PahoPublisher, error) {
	cfg.SetDefaults()
	p := &PahoPublisher{
		worker:  worker,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		retries: cfg.MaxRetries,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:     logger.New("mqtt_progress"),
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ctramp-" + worker
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.SetWill(p.topic("status"), p.statusPayload(StatusOffline), cfg.QoS, true)
	opts.OnConnect = func(paho.Client) { p.log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { p.log.Errorf("connection lost: %v", err) }
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds paho options from cfg.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig reads the client certificate and CA bundle.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	ca, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(ca)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoPublisher) topic(kind string) string {
	return p.prefix + "/workers/" + p.worker + "/" + kind
}

func (p *PahoPublisher) statusPayload(status string) string {
	b, _ := json.Marshal(struct {
		Worker string `json:"worker"`
		Status string `json:"status"`
		Time   int64  `json:"time"`
	}{p.worker, status, time.Now().UnixMilli()})
	return string(b)
}

// batchMessage is the payload of a batch notice.
type batchMessage struct {
	Worker     string  `json:"worker"`
	Partition  int     `json:"partition"`
	First      int     `json:"first"`
	Last       int     `json:"last"`
	Households int     `json:"households"`
	Seconds    float64 `json:"seconds"`
	Time       int64   `json:"time"`
}

func (p *PahoPublisher) PublishBatch(ev coremetrics.BatchEvent) error {
	payload, err := json.Marshal(batchMessage{
		Worker:     p.worker,
		Partition:  ev.Partition,
		First:      ev.First,
		Last:       ev.Last,
		Households: ev.Households,
		Seconds:    ev.Duration.Seconds(),
		Time:       ev.Time.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return p.publish(p.topic("batch"), false, payload)
}

// PublishStatus sets the retained worker status.
func (p *PahoPublisher) PublishStatus(status string) error {
	return p.publish(p.topic("status"), true, []byte(p.statusPayload(status)))
}

func (p *PahoPublisher) publish(topic string, retained bool, payload []byte) error {
	var err error
	for attempt := 0; attempt <= p.retries; attempt++ {
		token := p.cli.Publish(topic, p.qos, retained, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			p.log.Debugf("published %s", topic)
			return nil
		}
		p.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, err)
		if attempt < p.retries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(err, map[string]string{"module": "mqtt", "worker": p.worker, "topic": topic})
	return err
}

// Forward subscribes to bus before returning, then publishes its batch
// events in the background until ctx is canceled or the bus closes. The
// returned stop unsubscribes and waits until the events already delivered
// are published.
func (p *PahoPublisher) Forward(ctx context.Context, bus *eventbus.Bus[any]) (stop func()) {
	sub := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.forward(ctx, sub)
	}()
	var once sync.Once
	return func() {
		once.Do(func() { bus.Unsubscribe(sub) })
		<-done
	}
}

func (p *PahoPublisher) forward(ctx context.Context, sub <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if b, isBatch := ev.(coremetrics.BatchEvent); isBatch {
				if err := p.PublishBatch(b); err != nil {
					p.log.Warnf("batch %d..%d: %v", b.First, b.Last, err)
				}
			}
		}
	}
}

// Disconnect closes the connection.
func (p *PahoPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
