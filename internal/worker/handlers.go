package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"yt-notifier/internal/db"
	"yt-notifier/internal/notify"
	"yt-notifier/internal/summarize"
	"yt-notifier/pkg/tasks"

	"github.com/hibiken/asynq"
)

const (
	// renewalThreshold is deliberately well inside the hub lease we request,
	// so a few missed renewal ticks never let a lease lapse.
	renewalThreshold = 7 * 24 * time.Hour
	renewalBatchSize = 200
)

// HubClient is the WebSub request half, implemented by hub.Client.
type HubClient interface {
	Subscribe(ctx context.Context, channelID, callbackURL string) error
	Unsubscribe(ctx context.Context, channelID, callbackURL string) error
}

// EligibilityGate decides which subscribers are under their monthly limit.
type EligibilityGate interface {
	EligibleProfiles(ctx context.Context, channelID string) ([]int64, error)
}

type TaskHandler struct {
	hub         HubClient
	gate        EligibilityGate
	transcripts summarize.TranscriptFetcher
	summarizer  summarize.Summarizer
	callbackURL string
}

func NewTaskHandler(hub HubClient, gate EligibilityGate, transcripts summarize.TranscriptFetcher, summarizer summarize.Summarizer, callbackURL string) *TaskHandler {
	return &TaskHandler{
		hub:         hub,
		gate:        gate,
		transcripts: transcripts,
		summarizer:  summarizer,
		callbackURL: callbackURL,
	}
}

// HandleVideoEventTask runs one video event through the dispatch pipeline.
// Returning nil acks the task; returning an error requeues it with backoff.
// Semantic dead ends (orphaned channel, nobody eligible, no captions) are
// acked deliberately: retrying them cannot change the outcome. Redelivery is
// always safe because dispatch is idempotent per (profile, video).
func (h *TaskHandler) HandleVideoEventTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.VideoEventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal video event payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.VideoID == "" || p.ChannelID == "" {
		return fmt.Errorf("video event missing ids (video=%q, channel=%q): %w", p.VideoID, p.ChannelID, asynq.SkipRetry)
	}

	log.Printf("Processing video event: channel=%s video=%s title=%q", p.ChannelID, p.VideoID, p.Title)

	subscribers, err := db.GetProfileIDsForChannel(p.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to get subscribers for channel %s: %w", p.ChannelID, err)
	}
	if len(subscribers) == 0 {
		// Nobody watches this channel anymore; stop paying for its pushes.
		log.Printf("Channel %s has no subscribers, unsubscribing from hub", p.ChannelID)
		if err := h.hub.Unsubscribe(ctx, p.ChannelID, h.callbackURL); err != nil {
			log.Printf("failed to unsubscribe orphaned channel %s: %v", p.ChannelID, err)
		}
		return nil
	}

	eligible, err := h.gate.EligibleProfiles(ctx, p.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to compute eligible profiles for channel %s: %w", p.ChannelID, err)
	}
	if len(eligible) == 0 {
		log.Printf("No eligible subscribers for channel %s, dropping video %s", p.ChannelID, p.VideoID)
		return nil
	}

	transcript, language, err := h.transcripts.Transcript(ctx, p.VideoID)
	if errors.Is(err, summarize.ErrUnavailable) {
		log.Printf("No transcript for video %s, dropping", p.VideoID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch transcript for video %s: %w", p.VideoID, err)
	}

	summary, err := h.summarizer.Summarize(ctx, p.VideoID, transcript, language)
	if errors.Is(err, summarize.ErrUnavailable) {
		log.Printf("No summary available for video %s, dropping", p.VideoID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to summarize video %s: %w", p.VideoID, err)
	}

	created, err := notify.Dispatch(ctx, p, eligible, buildNotificationBody(p, summary))
	if err != nil {
		return fmt.Errorf("failed to dispatch notifications for video %s: %w", p.VideoID, err)
	}

	log.Printf("Created %d notifications for video %s (channel %s)", created, p.VideoID, p.ChannelID)
	return nil
}

func buildNotificationBody(event tasks.VideoEventPayload, summary summarize.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s uploaded a new video: %s\n\n", event.AuthorName, event.Title)
	sb.WriteString(summary.Brief)
	if len(summary.KeyPoints) > 0 {
		sb.WriteString("\n")
		for _, point := range summary.KeyPoints {
			fmt.Fprintf(&sb, "\n- %s", point)
		}
	}
	fmt.Fprintf(&sb, "\n\nhttps://www.youtube.com/watch?v=%s", event.VideoID)
	return sb.String()
}

// HandleRenewSubscriptionsTask refreshes hub leases that are stale or were
// never confirmed. One channel's failure only skips that channel; its
// timestamp stays put so the next tick retries it.
func (h *TaskHandler) HandleRenewSubscriptionsTask(ctx context.Context, t *asynq.Task) error {
	subs, err := db.GetStaleWebSubSubscriptions(renewalThreshold, renewalBatchSize)
	if err != nil {
		return fmt.Errorf("failed to query stale subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	log.Printf("Renewing %d stale WebSub subscriptions", len(subs))

	renewed := 0
	for _, sub := range subs {
		callbackURL := sub.CallbackURL
		if callbackURL == "" {
			callbackURL = h.callbackURL
		}

		if err := h.hub.Subscribe(ctx, sub.ChannelID, callbackURL); err != nil {
			log.Printf("failed to renew subscription %d (channel %s): %v", sub.ID, sub.ChannelID, err)
			continue
		}
		if err := db.MarkWebSubRenewed(sub.ID, time.Now()); err != nil {
			log.Printf("failed to mark subscription %d renewed: %v", sub.ID, err)
			continue
		}
		renewed++
	}

	log.Printf("Renewed %d/%d WebSub subscriptions", renewed, len(subs))
	return nil
}

// HandleUsageAlertTask delivers the over-limit email. The mail provider is an
// external collaborator; here we hand off and stamp the alert row so the
// dashboard can show when the user was told.
func (h *TaskHandler) HandleUsageAlertTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.UsageAlertPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal usage alert payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Sending usage alert: profile=%d type=%s period=%s", p.ProfileID, p.AlertType, p.PeriodStart.Format(time.DateOnly))

	if err := db.MarkUsageAlertSent(p.ProfileID, p.AlertType, p.PeriodStart, time.Now()); err != nil {
		return fmt.Errorf("failed to mark usage alert sent for profile %d: %w", p.ProfileID, err)
	}
	return nil
}
