// Package publish forwards accepted telegrams to an MQTT broker.
package publish

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aso824/dcf77decoder/internal/metrics"
	"github.com/aso824/dcf77decoder/internal/store"
)

// Publisher delivers accepted telegrams to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec store.Record) error
	Close()
}

// Nop discards everything. It is used when MQTT is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, store.Record) error { return nil }
func (Nop) Close()                                      {}

// Config holds MQTT settings.
type Config struct {
	Broker      string
	TopicPrefix string
	Username    string
	Password    string
	QoS         byte
	Timeout     time.Duration
}

// Message is the JSON payload published per accepted telegram.
type Message struct {
	Receiver  string `json:"receiver"`
	Telegram  string `json:"telegram"`
	DecodedAt string `json:"decoded_at"`
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
	Day       int    `json:"day"`
	Weekday   int    `json:"weekday"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	Antenna   int    `json:"antenna"`
	Change    int    `json:"time_change"`
	Summer    int    `json:"summer_time"`
}

// publishFunc is the part of mqtt.Client used here.
type publishFunc func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token

// MQTT publishes to an MQTT broker.
type MQTT struct {
	client  mqtt.Client
	publish publishFunc
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "dcf77_" + hex.EncodeToString(b)
}

// NewMQTT connects to the broker. The client reconnects on its own after the
// first successful connection.
func NewMQTT(cfg Config, logger *slog.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", "component", "publish", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "component", "publish", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connecting to mqtt broker %s: timeout after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.Broker, err)
	}

	return newMQTT(client, client.Publish, cfg, logger), nil
}

func newMQTT(client mqtt.Client, publish publishFunc, cfg Config, logger *slog.Logger) *MQTT {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &MQTT{
		client:  client,
		publish: publish,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Topic returns the topic for a receiver: <prefix>/<receiver>/decoded.
// MQTT wildcard and separator characters in the receiver ID are replaced.
func Topic(prefix, receiver string) string {
	r := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(receiver)
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return r + "/decoded"
	}
	return prefix + "/" + r + "/decoded"
}

// NewMessage builds the payload for rec.
func NewMessage(rec store.Record) Message {
	t := rec.Result.Time
	return Message{
		Receiver:  rec.Receiver,
		Telegram:  rec.Telegram,
		DecodedAt: rec.DecodedAt.UTC().Format(time.RFC3339),
		Hour:      t.Hour,
		Minute:    t.Minute,
		Day:       t.Day,
		Weekday:   t.Weekday,
		Month:     t.Month,
		Year:      t.Year,
		Antenna:   rec.Result.Antenna,
		Change:    rec.Result.TimeChange,
		Summer:    rec.Result.SummerTime,
	}
}

// Publish sends rec and waits for the broker acknowledgement, ctx
// cancellation or the configured timeout, whichever comes first.
func (m *MQTT) Publish(ctx context.Context, rec store.Record) error {
	payload, err := json.Marshal(NewMessage(rec))
	if err != nil {
		return fmt.Errorf("encoding mqtt payload: %w", err)
	}

	topic := Topic(m.prefix, rec.Receiver)
	token := m.publish(topic, m.qos, false, payload)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		metrics.IncMQTTPublishes("error")
		return fmt.Errorf("publishing to %s: %w", topic, ctx.Err())
	case <-timer.C:
		metrics.IncMQTTPublishes("error")
		return fmt.Errorf("publishing to %s: timeout after %s", topic, m.timeout)
	}

	if err := token.Error(); err != nil {
		metrics.IncMQTTPublishes("error")
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	metrics.IncMQTTPublishes("ok")
	m.logger.Debug("mqtt published", "component", "publish", "topic", topic, "bytes", len(payload))
	return nil
}

// Close disconnects from the broker, allowing 250ms for in-flight work.
func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
