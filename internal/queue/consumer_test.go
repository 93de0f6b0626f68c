package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/model"
)

func sampleEvent(t *testing.T) ReservationEvent {
	t.Helper()
	start := time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC)
	r := &model.Reservation{
		ID: 7, Reference: "3f1c2a9e-0000-4000-8000-000000000000", UserID: 3,
		TableID: 2, TableLabel: "T2", PartySize: 4, Date: "2026-06-01",
		StartsAt: start, EndsAt: start.Add(90 * time.Minute), Status: model.StatusConfirmed,
	}
	return NewReservationEvent(EventReservationConfirmed, r, start.Add(-time.Hour))
}

func TestNewReservationEvent(t *testing.T) {
	ev := sampleEvent(t)
	assert.Equal(t, "2026-06-01T17:00:00Z", ev.StartsAt)
	assert.Equal(t, "2026-06-01T18:30:00Z", ev.EndsAt)
	assert.Equal(t, "2026-06-01T16:00:00Z", ev.OccurredAt)
	assert.Equal(t, "T2", ev.TableLabel)
}

func TestHandleMessageAppendsLine(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("", dir, logrus.New())

	body, err := json.Marshal(sampleEvent(t))
	require.NoError(t, err)
	require.NoError(t, c.handleMessage(body))
	require.NoError(t, c.handleMessage(body))

	data, err := os.ReadFile(filepath.Join(dir, "reservations.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "reservation.confirmed")
	assert.Contains(t, lines[0], "reservation_id=7")
	assert.Contains(t, lines[0], `table="T2"`)
}

func TestHandleMessageRejectsBadPayload(t *testing.T) {
	c := NewConsumer("", t.TempDir(), logrus.New())
	assert.Error(t, c.handleMessage([]byte("{not json")))
	assert.Error(t, c.handleMessage([]byte(`{"type":""}`)))
}
