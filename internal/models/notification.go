package models

import "time"

// Notification is one owed email for one profile about one video. The unique
// index on (profile_id, video_id) is the last line of defense against double
// sends when the same video event is delivered more than once.
type Notification struct {
	ID        int64      `db:"id"`
	ProfileID int64      `db:"profile_id"`
	ChannelID string     `db:"channel_id"`
	VideoID   string     `db:"video_id"`
	Body      string     `db:"body"`
	Status    string     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    *time.Time `db:"sent_at"`
}
