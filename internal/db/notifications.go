package db

import (
	"fmt"
	"strings"
	"time"

	"yt-notifier/internal/models"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// GetNotifiedProfileIDs returns the profiles that already have a notification
// row for videoID, regardless of its delivery status.
func GetNotifiedProfileIDs(videoID string) ([]int64, error) {
	var profileIDs []int64
	err := DB.Select(&profileIDs,
		"SELECT profile_id FROM notifications WHERE video_id = $1", videoID)
	return profileIDs, err
}

// CreateNotifications inserts one pending notification per profile in a single
// statement. ON CONFLICT DO NOTHING backstops the caller's dedup against races
// between concurrent workers; the returned count only reflects rows actually
// inserted.
func CreateNotifications(profileIDs []int64, channelID, videoID, body string) (int, error) {
	if len(profileIDs) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO notifications (profile_id, channel_id, video_id, body, status) VALUES ")
	args := make([]interface{}, 0, len(profileIDs)+3)
	args = append(args, channelID, videoID, body)
	for i, profileID := range profileIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("($%d, $1, $2, $3, 'pending')", i+4))
		args = append(args, profileID)
	}
	sb.WriteString(" ON CONFLICT (profile_id, video_id) DO NOTHING")

	res, err := DB.Exec(sb.String(), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetPendingNotifications is the email sender's work queue: the oldest
// not-yet-delivered rows, capped so one sweep stays bounded.
func GetPendingNotifications(limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := DB.Select(&notifications,
		"SELECT * FROM notifications WHERE status = 'pending' ORDER BY created_at LIMIT $1", limit)
	return notifications, err
}

func MarkNotificationSent(id int64, sentAt time.Time) error {
	_, err := DB.Exec("UPDATE notifications SET status = 'sent', sent_at = $1 WHERE id = $2", sentAt, id)
	return err
}

func MarkNotificationFailed(id int64) error {
	_, err := DB.Exec("UPDATE notifications SET status = 'failed' WHERE id = $1", id)
	return err
}
