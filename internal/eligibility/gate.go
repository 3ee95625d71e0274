// Package eligibility decides which subscribers of a channel are still under
// their monthly notification limit, rolling billing periods forward as a side
// effect and alerting the ones that are over.
package eligibility

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"yt-notifier/internal/db"
	"yt-notifier/internal/models"
	"yt-notifier/pkg/tasks"
)

type Gate struct {
	asynqClient tasks.TaskEnqueuer

	// alertsAsync is flipped off in tests so sqlmock expectations stay
	// deterministic.
	alertsAsync bool
}

func NewGate(client tasks.TaskEnqueuer) *Gate {
	return &Gate{asynqClient: client, alertsAsync: true}
}

// EligibleProfiles returns every profile subscribed to channelID whose usage
// is under its monthly limit. A billing period that has already ended is
// rolled forward (usage reset, dates advanced one month) before the limit is
// checked. Over-limit profiles are alerted in the background; alert failures
// never affect the returned set.
func (g *Gate) EligibleProfiles(ctx context.Context, channelID string) ([]int64, error) {
	profileIDs, err := db.GetProfileIDsForChannel(channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscribers for channel %s: %w", channelID, err)
	}
	if len(profileIDs) == 0 {
		return nil, nil
	}

	var eligible []int64
	var overLimit []models.BillingSubscription

	for _, profileID := range profileIDs {
		bs, err := db.GetActiveBillingSubscription(profileID)
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("Profile %d has no active billing subscription, skipping", profileID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get billing subscription for profile %d: %w", profileID, err)
		}

		now := time.Now()
		if bs.PeriodEnd.Before(now) {
			bs.PeriodStart = bs.PeriodStart.AddDate(0, 1, 0)
			bs.PeriodEnd = bs.PeriodEnd.AddDate(0, 1, 0)
			bs.CurrentUsage = 0
			if err := db.RolloverBillingPeriod(bs.ID, bs.PeriodStart, bs.PeriodEnd); err != nil {
				return nil, fmt.Errorf("failed to roll billing period for profile %d: %w", profileID, err)
			}
			log.Printf("Rolled billing period for profile %d forward to %s", profileID, bs.PeriodStart.Format(time.DateOnly))
		}

		if bs.CurrentUsage < bs.MonthlyLimit {
			eligible = append(eligible, profileID)
		} else {
			overLimit = append(overLimit, bs)
		}
	}

	if len(overLimit) > 0 {
		if g.alertsAsync {
			go g.SendUsageAlerts(overLimit)
		} else {
			g.SendUsageAlerts(overLimit)
		}
	}

	return eligible, nil
}

// SendUsageAlerts records a usage-limit alert for each profile, at most once
// per billing period, and queues the alert email for the ones recorded. One
// profile's failure never blocks the rest.
func (g *Gate) SendUsageAlerts(overLimit []models.BillingSubscription) {
	for _, bs := range overLimit {
		created, err := db.RecordUsageAlert(bs.ProfileID, db.AlertTypeUsageLimit, bs.PeriodStart)
		if err != nil {
			log.Printf("failed to record usage alert for profile %d: %v", bs.ProfileID, err)
			continue
		}
		if !created {
			// Already alerted this period.
			continue
		}

		task, err := tasks.NewUsageAlertTask(bs.ProfileID, db.AlertTypeUsageLimit, bs.PeriodStart)
		if err != nil {
			log.Printf("failed to create usage alert task for profile %d: %v", bs.ProfileID, err)
			continue
		}
		if _, err := g.asynqClient.Enqueue(task); err != nil {
			log.Printf("failed to enqueue usage alert task for profile %d: %v", bs.ProfileID, err)
		}
	}
}
