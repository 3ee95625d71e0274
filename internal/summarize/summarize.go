// Package summarize wraps the external transcript and AI-summary services.
// Both are consumed through small interfaces so the worker can be tested
// without the real backends.
package summarize

import (
	"context"
	"errors"
)

// ErrUnavailable means the collaborator answered but has no content for the
// video (no captions, summary refused). Callers drop the event instead of
// retrying.
var ErrUnavailable = errors.New("content unavailable")

// TranscriptFetcher retrieves captions for a video.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (text string, language string, err error)
}

// Summary is the generated notification content for one video.
type Summary struct {
	Brief     string
	KeyPoints []string
}

// Summarizer turns a transcript into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, videoID, transcript, language string) (Summary, error)
}
