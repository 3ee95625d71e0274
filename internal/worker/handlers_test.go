package worker

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"yt-notifier/internal/db"
	"yt-notifier/internal/summarize"
	"yt-notifier/internal/test"
	"yt-notifier/pkg/tasks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

type stubHub struct {
	subscribed   []string
	unsubscribed []string
	failChannels map[string]error
}

func (s *stubHub) Subscribe(ctx context.Context, channelID, callbackURL string) error {
	if err := s.failChannels[channelID]; err != nil {
		return err
	}
	s.subscribed = append(s.subscribed, channelID)
	return nil
}

func (s *stubHub) Unsubscribe(ctx context.Context, channelID, callbackURL string) error {
	s.unsubscribed = append(s.unsubscribed, channelID)
	return nil
}

type stubGate struct {
	eligible []int64
	err      error
}

func (s *stubGate) EligibleProfiles(ctx context.Context, channelID string) ([]int64, error) {
	return s.eligible, s.err
}

type stubTranscripts struct {
	text  string
	lang  string
	err   error
	calls int
}

func (s *stubTranscripts) Transcript(ctx context.Context, videoID string) (string, string, error) {
	s.calls++
	return s.text, s.lang, s.err
}

type stubSummarizer struct {
	summary summarize.Summary
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, videoID, transcript, language string) (summarize.Summary, error) {
	s.calls++
	return s.summary, s.err
}

// timeNear matches a time argument within a minute of want, for queries that
// compute a cutoff from time.Now().
type timeNear struct {
	want time.Time
}

func (m timeNear) Match(v driver.Value) bool {
	got, ok := v.(time.Time)
	if !ok {
		return false
	}
	diff := got.Sub(m.want)
	if diff < 0 {
		diff = -diff
	}
	return diff < time.Minute
}

func videoEventTask(t *testing.T, p tasks.VideoEventPayload) *asynq.Task {
	payload, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return asynq.NewTask(tasks.TypeVideoEvent, payload)
}

func newTestHandler(hub *stubHub, gate *stubGate, tr *stubTranscripts, sum *stubSummarizer) *TaskHandler {
	return NewTaskHandler(hub, gate, tr, sum, "https://notifier.example.com/websub/callback")
}

func TestHandleVideoEventTaskCreatesNotifications(t *testing.T) {
	_, mock := test.NewMockDB(t)

	hub := &stubHub{}
	gate := &stubGate{eligible: []int64{1, 2}}
	tr := &stubTranscripts{text: "hello world", lang: "en"}
	sum := &stubSummarizer{summary: summarize.Summary{Brief: "A brief.", KeyPoints: []string{"point one"}}}
	handler := newTestHandler(hub, gate, tr, sum)

	mock.ExpectQuery(`SELECT profile_id FROM channel_subscriptions WHERE channel_id = \$1`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(`SELECT profile_id FROM notifications WHERE video_id = \$1`).
		WithArgs("V1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}))
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("C1", "V1", sqlmock.AnyArg(), int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE billing_subscriptions`).
		WithArgs(1, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE billing_subscriptions`).
		WithArgs(1, int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "C1", VideoID: "V1", Title: "New video", AuthorName: "Author"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Empty(t, hub.unsubscribed)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, 1, sum.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleVideoEventTaskDuplicateDelivery(t *testing.T) {
	_, mock := test.NewMockDB(t)

	gate := &stubGate{eligible: []int64{1, 2}}
	tr := &stubTranscripts{text: "hello", lang: "en"}
	sum := &stubSummarizer{summary: summarize.Summary{Brief: "A brief."}}
	handler := newTestHandler(&stubHub{}, gate, tr, sum)

	mock.ExpectQuery(`SELECT profile_id FROM channel_subscriptions WHERE channel_id = \$1`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow(1).AddRow(2))
	// Both profiles were notified on the first delivery; no insert happens.
	mock.ExpectQuery(`SELECT profile_id FROM notifications WHERE video_id = \$1`).
		WithArgs("V1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow(1).AddRow(2))

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "C1", VideoID: "V1"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleVideoEventTaskOrphanedChannel(t *testing.T) {
	_, mock := test.NewMockDB(t)

	hub := &stubHub{}
	tr := &stubTranscripts{}
	handler := newTestHandler(hub, &stubGate{}, tr, &stubSummarizer{})

	mock.ExpectQuery(`SELECT profile_id FROM channel_subscriptions WHERE channel_id = \$1`).
		WithArgs("Cgone").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}))

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "Cgone", VideoID: "V1"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Equal(t, []string{"Cgone"}, hub.unsubscribed)
	assert.Zero(t, tr.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleVideoEventTaskNoEligibleProfiles(t *testing.T) {
	_, mock := test.NewMockDB(t)

	tr := &stubTranscripts{}
	handler := newTestHandler(&stubHub{}, &stubGate{eligible: nil}, tr, &stubSummarizer{})

	mock.ExpectQuery(`SELECT profile_id FROM channel_subscriptions WHERE channel_id = \$1`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow(1))

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "C1", VideoID: "V1"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Zero(t, tr.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleVideoEventTaskNoTranscript(t *testing.T) {
	_, mock := test.NewMockDB(t)

	tr := &stubTranscripts{err: summarize.ErrUnavailable}
	sum := &stubSummarizer{}
	handler := newTestHandler(&stubHub{}, &stubGate{eligible: []int64{1}}, tr, sum)

	mock.ExpectQuery(`SELECT profile_id FROM channel_subscriptions WHERE channel_id = \$1`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow(1))

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "C1", VideoID: "V1"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Zero(t, sum.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleVideoEventTaskTransientTranscriptFailure(t *testing.T) {
	_, mock := test.NewMockDB(t)

	tr := &stubTranscripts{err: errors.New("connection reset")}
	handler := newTestHandler(&stubHub{}, &stubGate{eligible: []int64{1}}, tr, &stubSummarizer{})

	mock.ExpectQuery(`SELECT profile_id FROM channel_subscriptions WHERE channel_id = \$1`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow(1))

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "C1", VideoID: "V1"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	// The error bubbles up so asynq requeues the task with backoff.
	assert.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleVideoEventTaskMissingIDs(t *testing.T) {
	handler := newTestHandler(&stubHub{}, &stubGate{}, &stubTranscripts{}, &stubSummarizer{})

	task := videoEventTask(t, tasks.VideoEventPayload{ChannelID: "C1"})
	err := handler.HandleVideoEventTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleRenewSubscriptionsTask(t *testing.T) {
	_, mock := test.NewMockDB(t)

	// Channel B's renewal fails; A and C still succeed and get stamped.
	hub := &stubHub{failChannels: map[string]error{"UCb": errors.New("hub timeout")}}
	handler := newTestHandler(hub, &stubGate{}, &stubTranscripts{}, &stubSummarizer{})

	staleCols := []string{"id", "profile_id", "channel_id", "channel_title", "callback_url", "subscribed_at", "web_sub_renewed_at"}
	old := time.Now().Add(-10 * 24 * time.Hour)
	// The cutoff is what keeps recently-renewed channels out of the batch.
	mock.ExpectQuery(`WHERE web_sub_renewed_at IS NULL OR web_sub_renewed_at < \$1`).
		WithArgs(timeNear{time.Now().Add(-renewalThreshold)}, renewalBatchSize).
		WillReturnRows(sqlmock.NewRows(staleCols).
			AddRow(1, 1, "UCa", "A", "https://notifier.example.com/websub/callback", old, nil).
			AddRow(2, 1, "UCb", "B", "https://notifier.example.com/websub/callback", old, old).
			AddRow(3, 2, "UCc", "C", "https://notifier.example.com/websub/callback", old, old))

	mock.ExpectExec(`UPDATE channel_subscriptions SET web_sub_renewed_at = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE channel_subscriptions SET web_sub_renewed_at = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

	task := asynq.NewTask(tasks.TypeRenewSubscriptions, nil)
	err := handler.HandleRenewSubscriptionsTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Equal(t, []string{"UCa", "UCc"}, hub.subscribed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleUsageAlertTask(t *testing.T) {
	_, mock := test.NewMockDB(t)

	handler := newTestHandler(&stubHub{}, &stubGate{}, &stubTranscripts{}, &stubSummarizer{})

	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE usage_alert_log SET sent_at = \$1`).
		WithArgs(sqlmock.AnyArg(), int64(2), db.AlertTypeUsageLimit, periodStart).
		WillReturnResult(sqlmock.NewResult(0, 1))

	alert, err := tasks.NewUsageAlertTask(2, db.AlertTypeUsageLimit, periodStart)
	assert.NoError(t, err)

	err = handler.HandleUsageAlertTask(context.Background(), alert)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
