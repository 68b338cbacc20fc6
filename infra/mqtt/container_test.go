package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coremetrics "github.com/kilianp07/ctramp/core/metrics"
)

func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte("listener 1883\nallow_anonymous true\npersistence false\n"), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{HostFilePath: path, ContainerFilePath: "/mosquitto/config/mosquitto.conf", FileMode: 0644},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("container start: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestProgressAgainstMosquitto(t *testing.T) {
	if v := os.Getenv("DOCKER_AVAILABLE"); v != "true" && v != "1" {
		t.Skip("docker not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	broker := startMosquitto(ctx, t)

	got := make(chan batchMessage, 1)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("observer"))
	if tok := sub.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("observer connect: %v", tok.Error())
	}
	defer sub.Disconnect(100)
	tok := sub.Subscribe("ctramp/workers/+/batch", 1, func(_ paho.Client, m paho.Message) {
		var b batchMessage
		if err := json.Unmarshal(m.Payload(), &b); err == nil {
			got <- b
		}
	})
	if tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	p, err := NewPahoPublisher(Config{Broker: broker, QoS: 1}, "w9")
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer p.Disconnect()
	if err := p.PublishBatch(coremetrics.BatchEvent{Worker: "w9", First: 0, Last: 99, Households: 100, Time: time.Now()}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case b := <-got:
		if b.Worker != "w9" || b.Households != 100 {
			t.Fatalf("unexpected batch %+v", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("batch not received")
	}
}
