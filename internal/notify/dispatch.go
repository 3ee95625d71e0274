// Package notify is the transactional boundary against duplicate sends: at
// most one notification ever exists per (profile, video).
package notify

import (
	"context"
	"fmt"
	"log"

	"yt-notifier/internal/db"
	"yt-notifier/pkg/tasks"
)

// Dispatch creates pending notifications for the eligible profiles that have
// not been notified about this video yet. Profiles already holding a row for
// the video are skipped, so redelivered events are a no-op. Returns how many
// rows were actually created.
func Dispatch(ctx context.Context, event tasks.VideoEventPayload, eligibleProfiles []int64, body string) (int, error) {
	if len(eligibleProfiles) == 0 {
		return 0, nil
	}

	notified, err := db.GetNotifiedProfileIDs(event.VideoID)
	if err != nil {
		return 0, fmt.Errorf("failed to get notified profiles for video %s: %w", event.VideoID, err)
	}

	alreadyNotified := make(map[int64]bool, len(notified))
	for _, profileID := range notified {
		alreadyNotified[profileID] = true
	}

	toCreate := make([]int64, 0, len(eligibleProfiles))
	for _, profileID := range eligibleProfiles {
		if !alreadyNotified[profileID] {
			toCreate = append(toCreate, profileID)
		}
	}
	if len(toCreate) == 0 {
		log.Printf("All eligible profiles already notified for video %s", event.VideoID)
		return 0, nil
	}

	created, err := db.CreateNotifications(toCreate, event.ChannelID, event.VideoID, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create notifications for video %s: %w", event.VideoID, err)
	}

	// Usage counts what was generated, not what was delivered. Best effort:
	// a failed increment is logged, not retried, and never fails the
	// dispatch.
	for _, profileID := range toCreate {
		if err := db.IncrementUsage(profileID, 1); err != nil {
			log.Printf("failed to increment usage for profile %d (video %s): %v", profileID, event.VideoID, err)
		}
	}

	return created, nil
}
