package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "surprise-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, wantErr: ErrInvalidTopic},
		{name: "invalid QoS", topic: "surprise/test", qos: 3, wantErr: ErrInvalidQoS},
		{name: "payload too large", topic: "surprise/test", payload: make([]byte, maxPayloadSize+1), qos: 1, wantErr: ErrPublishFailed},
		{name: "disconnected", topic: "surprise/test", payload: []byte("On"), qos: 1, wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, true)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, handler: handler, wantErr: ErrInvalidTopic},
		{name: "invalid QoS", topic: "surprise/test", qos: 3, handler: handler, wantErr: ErrInvalidQoS},
		{name: "nil handler", topic: "surprise/test", qos: 1, handler: nil, wantErr: ErrSubscribeFailed},
		{name: "disconnected", topic: "surprise/test", qos: 1, handler: handler, wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got  string
		want string
	}{
		{topics.Status("state"), "surprise/status/state"},
		{topics.Status("locked"), "surprise/status/locked"},
		{topics.Timer(), "surprise/status/timer"},
		{topics.Action(), "surprise/command/action"},
		{topics.SystemStatus(), "surprise/system/status"},
		{topics.AllStatus(), "surprise/status/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseActionPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"activate", "activate"},
		{`"reset"`, "reset"},
		{"  up\n", "up"},
		{"", ""},
		{`""`, ""},
	}
	for _, tt := range tests {
		if got := ParseActionPayload([]byte(tt.payload)); got != tt.want {
			t.Errorf("ParseActionPayload(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "operator"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "surprise-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "operator" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("AutoReconnect and CleanSession should be set")
	}

	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig is nil with TLS enabled")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "surprise-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Error("will should be enabled and retained")
	}
	if opts.WillTopic != "surprise/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !strings.Contains(string(opts.WillPayload), `"status":"offline"`) {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

func TestStatusPayloads(t *testing.T) {
	if p := buildOnlinePayload("c1"); !strings.Contains(p, `"status":"online"`) || !strings.Contains(p, `"client_id":"c1"`) {
		t.Errorf("online payload = %s", p)
	}
	if p := buildOfflinePayload("c1"); !strings.Contains(p, "graceful_shutdown") {
		t.Errorf("offline payload = %s", p)
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	client.wrapHandler(func(string, []byte) error {
		return errors.New("bad action")
	})(nil, fakeMessage{topic: "surprise/command/action", payload: []byte("x")})

	client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "surprise/command/action"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one", logger.errors)
	}
}
