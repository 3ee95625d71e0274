package db

import "time"

const AlertTypeUsageLimit = "usage_limit"

// RecordUsageAlert inserts the alert marker for this billing period. Returns
// false when the profile was already alerted this period; the unique index on
// (profile_id, alert_type, period_start) makes repeat calls a no-op.
func RecordUsageAlert(profileID int64, alertType string, periodStart time.Time) (bool, error) {
	res, err := DB.Exec(`
		INSERT INTO usage_alert_log (profile_id, alert_type, period_start)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, alert_type, period_start) DO NOTHING`,
		profileID, alertType, periodStart)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func MarkUsageAlertSent(profileID int64, alertType string, periodStart, sentAt time.Time) error {
	_, err := DB.Exec(`
		UPDATE usage_alert_log SET sent_at = $1
		WHERE profile_id = $2 AND alert_type = $3 AND period_start = $4`,
		sentAt, profileID, alertType, periodStart)
	return err
}
