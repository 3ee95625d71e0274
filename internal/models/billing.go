package models

import "time"

// BillingSubscription is a profile's active plan. CurrentUsage counts
// notifications generated in the running billing period; the period rolls
// forward one month at a time once PeriodEnd has passed.
type BillingSubscription struct {
	ID           int64     `db:"id"`
	ProfileID    int64     `db:"profile_id"`
	Plan         string    `db:"plan"`
	Status       string    `db:"status"`
	MonthlyLimit int       `db:"monthly_limit"`
	CurrentUsage int       `db:"current_usage"`
	PeriodStart  time.Time `db:"period_start"`
	PeriodEnd    time.Time `db:"period_end"`
}

// UsageAlert records that a profile was told they hit their limit, at most
// once per (profile, alert type, billing period).
type UsageAlert struct {
	ID          int64      `db:"id"`
	ProfileID   int64      `db:"profile_id"`
	AlertType   string     `db:"alert_type"`
	PeriodStart time.Time  `db:"period_start"`
	SentAt      *time.Time `db:"sent_at"`
	CreatedAt   time.Time  `db:"created_at"`
}
