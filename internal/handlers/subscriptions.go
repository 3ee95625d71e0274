// Package handlers is the subscription lifecycle API the dashboard consumes:
// watching a channel creates the ChannelSubscription edge, unwatching removes
// it. Auth lives in the dashboard; this surface trusts its profile ids.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"yt-notifier/internal/db"
	"yt-notifier/pkg/tasks"
)

const maxSubscriptionsPerProfile = 50

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
	callbackURL string
}

func New(asynqClient tasks.TaskEnqueuer, callbackURL string) *Handlers {
	return &Handlers{asynqClient: asynqClient, callbackURL: callbackURL}
}

func (h *Handlers) GetSubscriptions(w http.ResponseWriter, r *http.Request) {
	profileID, err := strconv.ParseInt(r.URL.Query().Get("profile_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid profile_id", http.StatusBadRequest)
		return
	}

	subs, err := db.GetSubscriptionsByProfileID(profileID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(subs); err != nil {
		log.Printf("Error encoding subscriptions for profile %d: %v", profileID, err)
	}
}

func (h *Handlers) PostSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID    int64  `json:"profile_id"`
		ChannelID    string `json:"channel_id"`
		ChannelTitle string `json:"channel_title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.ProfileID == 0 || req.ChannelID == "" {
		http.Error(w, "profile_id and channel_id are required", http.StatusBadRequest)
		return
	}

	existing, err := db.GetSubscriptionsByProfileID(req.ProfileID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(existing) >= maxSubscriptionsPerProfile {
		http.Error(w, "Subscription limit reached", http.StatusForbidden)
		return
	}

	sub, err := db.AddSubscription(req.ProfileID, req.ChannelID, req.ChannelTitle, h.callbackURL)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// The row starts with a null lease timestamp, so the renewal worker will
	// subscribe it on its next pass; nudge that pass instead of waiting for
	// the scheduler tick.
	task, err := tasks.NewRenewSubscriptionsTask()
	if err != nil {
		log.Printf("Error creating renewal task: %v", err)
	} else if _, err := h.asynqClient.Enqueue(task); err != nil {
		log.Printf("Error enqueuing renewal task: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(sub); err != nil {
		log.Printf("Error encoding subscription %d: %v", sub.ID, err)
	}
}

func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	profileID, err := strconv.ParseInt(r.URL.Query().Get("profile_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid profile_id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid subscription ID", http.StatusBadRequest)
		return
	}

	sub, err := db.GetSubscriptionByID(id)
	if err != nil || sub.ProfileID != profileID {
		// Hide other profiles' rows as well as truly missing ones.
		http.Error(w, "Subscription not found", http.StatusNotFound)
		return
	}

	if err := db.DeleteSubscription(profileID, id); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// If that was the channel's last watcher, the next video event takes the
	// orphan path and unsubscribes the hub lease; nothing to do here.
	w.WriteHeader(http.StatusNoContent)
}
