package models

import "time"

// VideoSummary is the persistent cache of AI-generated summaries, keyed by
// video so redelivered events never pay for a second generation. KeyPoints is
// stored newline-joined.
type VideoSummary struct {
	VideoID      string    `db:"video_id"`
	Language     string    `db:"language"`
	BriefSummary string    `db:"brief_summary"`
	KeyPoints    string    `db:"key_points"`
	CreatedAt    time.Time `db:"created_at"`
}
