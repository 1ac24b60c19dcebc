package publisher

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmpower/internal/config"
	"rmpower/pkg/models"
)

func TestNewValidatesHAConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.HAConfig
	}{
		{"missing url", config.HAConfig{Enabled: true, Token: "t", EntityID: "sensor.x"}},
		{"missing token", config.HAConfig{Enabled: true, URL: "http://ha.local", EntityID: "sensor.x"}},
		{"missing entity", config.HAConfig{Enabled: true, URL: "http://ha.local", Token: "t"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(config.MQTTConfig{}, tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewRequiresBrokerWhenMQTTEnabled(t *testing.T) {
	_, err := New(config.MQTTConfig{Enabled: true}, config.HAConfig{})
	assert.Error(t, err)
}

func TestPublishHA(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload HAPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub, err := New(config.MQTTConfig{}, config.HAConfig{
		Enabled:  true,
		URL:      srv.URL,
		Token:    "secret-token",
		EntityID: "sensor.rmp_energy_usage",
	})
	require.NoError(t, err)

	rec := models.UsageRecord{
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		KWh:  12.5,
		Unit: models.UnitKWh,
	}
	require.NoError(t, pub.Publish(rec))

	assert.Equal(t, "/api/appdaemon/backfill_state", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "sensor.rmp_energy_usage", gotPayload.EntityID)
	assert.Equal(t, "12.50", gotPayload.State)
	assert.Equal(t, "2024-01-01T00:00:00Z", gotPayload.LastChanged)
	assert.Equal(t, gotPayload.LastChanged, gotPayload.LastUpdated)
}

func TestPublishHAErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backfill_state not registered", http.StatusNotFound)
	}))
	defer srv.Close()

	pub, err := New(config.MQTTConfig{}, config.HAConfig{
		Enabled:  true,
		URL:      srv.URL,
		Token:    "t",
		EntityID: "sensor.x",
	})
	require.NoError(t, err)

	err = pub.Publish(models.UsageRecord{Date: time.Now(), KWh: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPublishNoDestinationsIsNoOp(t *testing.T) {
	pub, err := New(config.MQTTConfig{}, config.HAConfig{})
	require.NoError(t, err)
	assert.NoError(t, pub.Publish(models.UsageRecord{Date: time.Now(), KWh: 1}))
	pub.Close()
}
