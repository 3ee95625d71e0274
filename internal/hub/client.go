// Package hub talks WebSub (PubSubHubbub) to keep push notifications for
// channel feeds flowing. The hub expires registrations, so the renewal worker
// re-subscribes on a schedule; this client is the stateless request half.
package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultHubURL is Google's hub, which serves YouTube channel feeds.
	DefaultHubURL = "https://pubsubhubbub.appspot.com/subscribe"

	topicURLTemplate = "https://www.youtube.com/xml/feeds/videos.xml?channel_id=%s"

	// leaseSeconds is the lease we ask the hub for. The renewal worker runs
	// well inside this window, so a few missed ticks are harmless.
	leaseSeconds = 10 * 24 * 60 * 60
)

type Client struct {
	hubURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New returns a hub client that throttles outbound requests. Renewal batches
// can hit the hub dozens of times in a row; one request per second keeps us
// polite without slowing a batch meaningfully.
func New(hubURL string) *Client {
	if hubURL == "" {
		hubURL = DefaultHubURL
	}
	return &Client{
		hubURL:     hubURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 3),
	}
}

// TopicURL builds the feed topic for a channel.
func TopicURL(channelID string) string {
	return fmt.Sprintf(topicURLTemplate, channelID)
}

// Subscribe registers (or re-registers) callbackURL for the channel's feed.
// The hub treats a repeat subscribe as a lease renewal, so calling this for
// an already-subscribed channel is safe.
func (c *Client) Subscribe(ctx context.Context, channelID, callbackURL string) error {
	return c.request(ctx, "subscribe", channelID, callbackURL)
}

// Unsubscribe removes the registration. Unsubscribing a topic the hub does
// not know about returns 2xx, so orphan cleanup can call this blindly.
func (c *Client) Unsubscribe(ctx context.Context, channelID, callbackURL string) error {
	return c.request(ctx, "unsubscribe", channelID, callbackURL)
}

func (c *Client) request(ctx context.Context, mode, channelID, callbackURL string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("hub.callback", callbackURL)
	form.Set("hub.topic", TopicURL(channelID))
	form.Set("hub.mode", mode)
	form.Set("hub.lease_seconds", strconv.Itoa(leaseSeconds))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build hub request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hub %s request for channel %s failed: %w", mode, channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("hub %s for channel %s returned status %d", mode, channelID, resp.StatusCode)
	}
	return nil
}
