//go:build integration

package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "surprise-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_ActionRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "surprise-int-actions"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	got := make(chan string, 1)
	err = client.SubscribeActions(func(action string) error {
		got <- action
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeActions() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.Action()) {
		t.Error("action subscription not tracked")
	}

	time.Sleep(100 * time.Millisecond)
	if err := client.Publish(Topics{}.Action(), []byte(`"activate"`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case a := <-got:
		if a != "activate" {
			t.Errorf("action = %q, want activate", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("action not delivered")
	}
}

func TestIntegration_RetainedStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "surprise-int-status"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.Status("integration")
	if err := client.PublishRetained(topic, []byte("On")); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	got := make(chan string, 1)
	err = client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		got <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case v := <-got:
		if v != "On" {
			t.Errorf("retained = %q, want On", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retained status not delivered")
	}
}
