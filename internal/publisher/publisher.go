package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"rmpower/internal/config"
	"rmpower/pkg/models"
)

// Publisher forwards usage readings to Home Assistant (HTTP backfill API)
// and optionally mirrors them onto an MQTT topic.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
	log         *logrus.Entry
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	// Validate HA config if enabled
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	var client mqtt.Client
	var topicPrefix string

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		// Set default topic prefix if not specified
		topicPrefix = mqttCfg.TopicPrefix
		if topicPrefix == "" {
			topicPrefix = "electric_meter"
		}

		// Configure MQTT client options
		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("rmpower")
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		// Create and connect client
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
	}

	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         logrus.WithField("component", "publisher"),
	}, nil
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// Publish sends a usage reading to every enabled destination
func (p *Publisher) Publish(rec models.UsageRecord) error {
	if p.haConfig.Enabled {
		if err := p.publishHA(rec); err != nil {
			return err
		}
	}
	if p.client != nil {
		if err := p.publishMQTT(rec); err != nil {
			return err
		}
	}
	p.log.WithField("date", rec.DateKey()).Debug("reading published")
	return nil
}

// publishHA sends a usage reading to Home Assistant via HTTP API
func (p *Publisher) publishHA(rec models.UsageRecord) error {
	// AppDaemon API endpoint
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)

	timestamp := rec.Date.Format(time.RFC3339)
	payload := HAPayload{
		EntityID:    p.haConfig.EntityID,
		State:       fmt.Sprintf("%.2f", rec.KWh),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read error response body for debugging
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// publishMQTT mirrors a usage reading onto the broker
func (p *Publisher) publishMQTT(rec models.UsageRecord) error {
	topic := fmt.Sprintf("%s/usage/%s", p.topicPrefix, rec.DateKey())
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding MQTT payload: %w", err)
	}

	token := p.client.Publish(topic, 0, true, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
