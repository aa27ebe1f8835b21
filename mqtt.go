package main

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultMQTTTopic    = "arduino/climate"
	defaultMQTTClientID = "arduino-climate-plotter"
)

// Publisher forwards accepted samples to an external consumer.
type Publisher interface {
	// Publish sends one sample. Failures are reported, never fatal.
	Publish(s Sample, at time.Time) error
	Close() error
}

// ClimatePayload is the MQTT message body for one sample.
type ClimatePayload struct {
	Climate ClimateReading `json:"climate"`
}

// ClimateReading carries the sample values.
type ClimateReading struct {
	Timestamp   string  `json:"timestamp"`
	Elapsed     float64 `json:"elapsed_s"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// FormatPayload creates the JSON payload for a sample received at the given time.
func FormatPayload(s Sample, at time.Time) ([]byte, error) {
	return json.Marshal(ClimatePayload{
		Climate: ClimateReading{
			Timestamp:   at.UTC().Format(time.RFC3339),
			Elapsed:     s.Elapsed,
			Temperature: s.Temperature,
			Humidity:    s.Humidity,
		},
	})
}

type mqttPublisher struct {
	client paho.Client
	topic  string
}

// newMQTTPublisher connects to broker and publishes to topic.
func newMQTTPublisher(cfg MQTTConfig) (*mqttPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	if err := connectMQTT(client, cfg.Broker, 10*time.Second); err != nil {
		return nil, err
	}
	return &mqttPublisher{client: client, topic: cfg.Topic}, nil
}

// connectMQTT waits up to timeout for the first connection. On failure the
// client is disconnected so connect retries stop.
func connectMQTT(client paho.Client, broker string, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return nil
}

// Publish sends the sample at QoS 0, not retained.
func (p *mqttPublisher) Publish(s Sample, at time.Time) error {
	payload, err := FormatPayload(s, at)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *mqttPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
