package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
)

func testNotification() model.Notification {
	return model.Notification{
		UserID:         "bob",
		EventID:        "event-1",
		RegistrationID: "reg-7",
		Kind:           model.NotifyWaitlistPromotion,
		At:             time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestRedisPublisher_Notify(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := testNotification()
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	mock.ExpectPublish("custom:channel", payload).SetVal(1)

	p := NewRedisPublisher(db, "custom:channel")
	require.NoError(t, p.Notify(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_DefaultChannel(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := testNotification()
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	mock.ExpectPublish(DefaultChannel, payload).SetVal(0)

	require.NoError(t, NewRedisPublisher(db, "").Notify(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := testNotification()
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	mock.ExpectPublish(DefaultChannel, payload).SetErr(errors.New("connection refused"))

	err = NewRedisPublisher(db, DefaultChannel).Notify(context.Background(), n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish notification")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogNotifier(logger).Notify(context.Background(), testNotification()))
	assert.Contains(t, buf.String(), `"kind":"WAITLIST_PROMOTION"`)
	assert.Contains(t, buf.String(), `"user_id":"bob"`)
}
