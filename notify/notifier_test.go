package notify

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/linecount-go/alerts"
)

type published struct {
	subject string
	payload []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	if p.err != nil {
		return p.err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	p.messages = append(p.messages, published{subject: subject, payload: payload})
	return nil
}

func TestEventNotifierSubjects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		prefix   string
		kind     alerts.Kind
		expected string
	}{
		{"linecount", alerts.KindEntry, "linecount.events.entry"},
		{"linecount.", alerts.KindExit, "linecount.events.exit"},
		{"site.door1", alerts.KindBurstAlert, "site.door1.events.burst_alert"},
		{"", alerts.KindOccupancyAlert, "events.occupancy_alert"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			notifier := NewEventNotifier(&fakePublisher{}, tt.prefix)
			assert.Equal(t, tt.expected, notifier.Subject(tt.kind))
		})
	}
}

func TestEventNotifierPayload(t *testing.T) {
	t.Parallel()
	publisher := &fakePublisher{}
	notifier := NewEventNotifier(publisher, "linecount")
	event := alerts.Event{
		ID:        uuid.New(),
		Session:   uuid.New(),
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:      alerts.KindBurstAlert,
		Message:   "BURST ALERT: 5 entries in last 10s",
		Count:     5,
	}
	require.NoError(t, notifier.Notify(event))
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "linecount.events.burst_alert", publisher.messages[0].subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(publisher.messages[0].payload, &decoded))
	assert.Equal(t, "burst_alert", decoded["kind"])
	assert.Equal(t, event.ID.String(), decoded["id"])
	assert.Equal(t, float64(5), decoded["count"])

	var roundTrip alerts.Event
	require.NoError(t, json.Unmarshal(publisher.messages[0].payload, &roundTrip))
	assert.Equal(t, alerts.KindBurstAlert, roundTrip.Kind)
}

func TestEventNotifierPublishError(t *testing.T) {
	t.Parallel()
	down := fmt.Errorf("nats: connection closed")
	notifier := NewEventNotifier(&fakePublisher{err: down}, "linecount")
	err := notifier.Notify(alerts.Event{Kind: alerts.KindExit})
	require.Error(t, err)
	assert.Equal(t, down, errors.Cause(err))
	assert.Contains(t, err.Error(), "linecount.events.exit")
}

func TestServiceConnectFailure(t *testing.T) {
	t.Parallel()
	cfg := DefaultNATSConfig("nats://127.0.0.1:1")
	cfg.ConnectTimeout = 100 * time.Millisecond
	_, err := NewService(cfg, zerolog.Nop())
	assert.Error(t, err)
}
