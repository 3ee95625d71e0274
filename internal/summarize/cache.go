package summarize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"yt-notifier/internal/db"
)

// CachedSummarizer consults the video_summaries table before calling the
// wrapped summarizer, so a redelivered event never pays for generation twice.
type CachedSummarizer struct {
	inner Summarizer
}

func NewCachedSummarizer(inner Summarizer) *CachedSummarizer {
	return &CachedSummarizer{inner: inner}
}

func (c *CachedSummarizer) Summarize(ctx context.Context, videoID, transcript, language string) (Summary, error) {
	cached, err := db.GetVideoSummary(videoID)
	if err == nil {
		log.Printf("Summary cache hit for video %s", videoID)
		return Summary{Brief: cached.BriefSummary, KeyPoints: splitKeyPoints(cached.KeyPoints)}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("failed to read summary cache for video %s: %w", videoID, err)
	}

	summary, err := c.inner.Summarize(ctx, videoID, transcript, language)
	if err != nil {
		return Summary{}, err
	}

	if err := db.SaveVideoSummary(videoID, language, summary.Brief, strings.Join(summary.KeyPoints, "\n")); err != nil {
		// The summary is still good; the next delivery just regenerates it.
		log.Printf("failed to cache summary for video %s: %v", videoID, err)
	}
	return summary, nil
}

func splitKeyPoints(stored string) []string {
	if stored == "" {
		return nil
	}
	return strings.Split(stored, "\n")
}
