package db

import (
	"time"

	"yt-notifier/internal/models"
)

// GetActiveBillingSubscription returns the profile's active plan row. A
// profile with no active plan gets sql.ErrNoRows, which the eligibility gate
// treats as ineligible.
func GetActiveBillingSubscription(profileID int64) (models.BillingSubscription, error) {
	bs := models.BillingSubscription{}
	err := DB.Get(&bs,
		"SELECT * FROM billing_subscriptions WHERE profile_id = $1 AND status = 'active'", profileID)
	return bs, err
}

// RolloverBillingPeriod resets usage and advances the period dates. Called
// when an eligibility check finds the stored period has already ended.
func RolloverBillingPeriod(id int64, periodStart, periodEnd time.Time) error {
	_, err := DB.Exec(`
		UPDATE billing_subscriptions
		SET current_usage = 0, period_start = $1, period_end = $2
		WHERE id = $3`,
		periodStart, periodEnd, id)
	return err
}

// IncrementUsage counts n generated notifications against the profile's
// current billing period.
func IncrementUsage(profileID int64, n int) error {
	_, err := DB.Exec(
		"UPDATE billing_subscriptions SET current_usage = current_usage + $1 WHERE profile_id = $2 AND status = 'active'",
		n, profileID)
	return err
}
