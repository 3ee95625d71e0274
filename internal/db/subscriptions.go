package db

import (
	"log"
	"time"

	"yt-notifier/internal/models"
)

func GetSubscriptionByID(id int64) (models.ChannelSubscription, error) {
	sub := models.ChannelSubscription{}
	err := DB.Get(&sub, "SELECT * FROM channel_subscriptions WHERE id = $1", id)
	return sub, err
}

func GetSubscriptionsByProfileID(profileID int64) ([]models.ChannelSubscription, error) {
	query := `
		SELECT id, profile_id, channel_id, channel_title, callback_url, subscribed_at, web_sub_renewed_at
		FROM channel_subscriptions
		WHERE profile_id = $1
		ORDER BY subscribed_at DESC
	`
	var subs []models.ChannelSubscription
	err := DB.Select(&subs, query, profileID)
	if err != nil {
		log.Printf("Error getting subscriptions for profile %d: %v", profileID, err)
		return nil, err
	}
	return subs, nil
}

// GetProfileIDsForChannel returns every profile currently watching channelID.
// An empty slice means the channel is orphaned.
func GetProfileIDsForChannel(channelID string) ([]int64, error) {
	var profileIDs []int64
	err := DB.Select(&profileIDs,
		"SELECT profile_id FROM channel_subscriptions WHERE channel_id = $1", channelID)
	if err != nil {
		log.Printf("Error getting subscribers for channel %s: %v", channelID, err)
		return nil, err
	}
	return profileIDs, nil
}

func AddSubscription(profileID int64, channelID, channelTitle, callbackURL string) (*models.ChannelSubscription, error) {
	query := `
		INSERT INTO channel_subscriptions (profile_id, channel_id, channel_title, callback_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, profile_id, channel_id, channel_title, callback_url, subscribed_at, web_sub_renewed_at
	`
	sub := &models.ChannelSubscription{}
	err := DB.Get(sub, query, profileID, channelID, channelTitle, callbackURL)
	if err != nil {
		log.Printf("Error adding subscription for profile %d: %v", profileID, err)
		return nil, err
	}
	return sub, nil
}

func DeleteSubscription(profileID int64, subscriptionID int64) error {
	query := `
		DELETE FROM channel_subscriptions
		WHERE id = $1 AND profile_id = $2
	`
	_, err := DB.Exec(query, subscriptionID, profileID)
	if err != nil {
		log.Printf("Error deleting subscription %d for profile %d: %v", subscriptionID, profileID, err)
		return err
	}
	return nil
}

// GetStaleWebSubSubscriptions returns up to limit rows whose hub lease was
// never confirmed or was last renewed before the threshold.
func GetStaleWebSubSubscriptions(olderThan time.Duration, limit int) ([]models.ChannelSubscription, error) {
	query := `
		SELECT id, profile_id, channel_id, channel_title, callback_url, subscribed_at, web_sub_renewed_at
		FROM channel_subscriptions
		WHERE web_sub_renewed_at IS NULL OR web_sub_renewed_at < $1
		ORDER BY web_sub_renewed_at NULLS FIRST
		LIMIT $2
	`
	cutoff := time.Now().Add(-olderThan)
	var subs []models.ChannelSubscription
	err := DB.Select(&subs, query, cutoff, limit)
	return subs, err
}

func MarkWebSubRenewed(id int64, renewedAt time.Time) error {
	_, err := DB.Exec("UPDATE channel_subscriptions SET web_sub_renewed_at = $1 WHERE id = $2", renewedAt, id)
	return err
}
