package models

import "time"

// ChannelSubscription links a profile to a watched YouTube channel. One row
// per (profile, channel) pair; WebSubRenewedAt tracks when the hub lease for
// the channel's feed was last refreshed.
type ChannelSubscription struct {
	ID              int64      `db:"id"`
	ProfileID       int64      `db:"profile_id"`
	ChannelID       string     `db:"channel_id"`
	ChannelTitle    string     `db:"channel_title"`
	CallbackURL     string     `db:"callback_url"`
	SubscribedAt    time.Time  `db:"subscribed_at"`
	WebSubRenewedAt *time.Time `db:"web_sub_renewed_at"`
}
