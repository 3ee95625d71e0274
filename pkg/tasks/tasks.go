package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeVideoEvent         = "video:event"
	TypeRenewSubscriptions = "websub:renew"
	TypeUsageAlert         = "usage:alert"
)

// QueueRenewal keeps lease renewals on their own queue so a deep video
// backlog cannot starve them.
const QueueRenewal = "renewal"

// VideoEventPayload is the "new video" event produced by the WebSub callback
// and consumed by the queue worker.
type VideoEventPayload struct {
	ChannelID   string
	VideoID     string
	Title       string
	AuthorName  string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

func NewVideoEventTask(p VideoEventPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVideoEvent, payload), nil
}

func NewRenewSubscriptionsTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeRenewSubscriptions, nil, asynq.Queue(QueueRenewal)), nil
}

type UsageAlertPayload struct {
	ProfileID   int64
	AlertType   string
	PeriodStart time.Time
}

func NewUsageAlertTask(profileID int64, alertType string, periodStart time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(UsageAlertPayload{
		ProfileID:   profileID,
		AlertType:   alertType,
		PeriodStart: periodStart,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUsageAlert, payload), nil
}
