// Package websub is the hub-facing side of the pipeline: it answers the
// hub's subscription verification challenges and turns Atom push bodies into
// queued video events.
package websub

import (
	"encoding/xml"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"yt-notifier/internal/db"
	"yt-notifier/pkg/tasks"
)

// maxPushBody caps what we read from the hub; real pushes are a few KB.
const maxPushBody = 1 << 20

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
}

func New(asynqClient tasks.TaskEnqueuer) *Handlers {
	return &Handlers{asynqClient: asynqClient}
}

// Verify handles the hub's GET verification of a subscribe/unsubscribe
// request. Subscribes are only confirmed for channels somebody still watches;
// unsubscribes are always confirmed.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	topic := q.Get("hub.topic")
	challenge := q.Get("hub.challenge")

	if challenge == "" {
		http.Error(w, "Missing hub.challenge", http.StatusBadRequest)
		return
	}

	if mode == "subscribe" {
		channelID := channelIDFromTopic(topic)
		if channelID == "" {
			http.Error(w, "Unrecognized topic", http.StatusNotFound)
			return
		}
		subscribers, err := db.GetProfileIDsForChannel(channelID)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if len(subscribers) == 0 {
			log.Printf("Refusing hub verification for unwatched channel %s", channelID)
			http.Error(w, "Channel not watched", http.StatusNotFound)
			return
		}
	}

	log.Printf("Confirming hub %s verification for topic %s", mode, topic)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive handles the hub's POST push of new/updated feed entries. Each entry
// becomes one queued video event; a failed enqueue returns 5xx so the hub
// redelivers the push.
func (h *Handlers) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		log.Printf("failed to parse hub push body: %v", err)
		// Garbage we can never parse; 2xx stops the hub from resending it.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	for _, entry := range feed.Entries {
		if entry.VideoID == "" || entry.ChannelID == "" {
			log.Printf("Skipping feed entry with missing ids (video=%q, channel=%q)", entry.VideoID, entry.ChannelID)
			continue
		}

		task, err := tasks.NewVideoEventTask(tasks.VideoEventPayload{
			ChannelID:   entry.ChannelID,
			VideoID:     entry.VideoID,
			Title:       entry.Title,
			AuthorName:  entry.Author.Name,
			PublishedAt: parseFeedTime(entry.Published),
			UpdatedAt:   parseFeedTime(entry.Updated),
		})
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			log.Printf("failed to enqueue video event for video %s: %v", entry.VideoID, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		log.Printf("Enqueued video event: channel=%s video=%s", entry.ChannelID, entry.VideoID)
	}

	w.WriteHeader(http.StatusNoContent)
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string `xml:"videoId"`
	ChannelID string `xml:"channelId"`
	Title     string `xml:"title"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

func parseFeedTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func channelIDFromTopic(topic string) string {
	u, err := url.Parse(topic)
	if err != nil {
		return ""
	}
	return u.Query().Get("channel_id")
}
