package db

import "yt-notifier/internal/models"

func GetVideoSummary(videoID string) (models.VideoSummary, error) {
	vs := models.VideoSummary{}
	err := DB.Get(&vs, "SELECT * FROM video_summaries WHERE video_id = $1", videoID)
	return vs, err
}

// SaveVideoSummary caches a generated summary. Losing the race to another
// worker is fine, the first write wins.
func SaveVideoSummary(videoID, language, brief, keyPoints string) error {
	_, err := DB.Exec(`
		INSERT INTO video_summaries (video_id, language, brief_summary, key_points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id) DO NOTHING`,
		videoID, language, brief, keyPoints)
	return err
}
