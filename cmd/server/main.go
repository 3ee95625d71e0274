package main

import (
	"log"
	"net/http"
	"os"

	"yt-notifier/internal/db"
	"yt-notifier/internal/handlers"
	"yt-notifier/internal/websub"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	callbackURL := os.Getenv("CALLBACK_BASE_URL")
	if callbackURL == "" {
		log.Fatal("CALLBACK_BASE_URL is not set")
	}
	callbackURL += "/websub/callback"

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	hubHandlers := websub.New(client)
	apiHandlers := handlers.New(client, callbackURL)

	r := mux.NewRouter()
	r.HandleFunc("/websub/callback", hubHandlers.Verify).Methods(http.MethodGet)
	r.HandleFunc("/websub/callback", hubHandlers.Receive).Methods(http.MethodPost)
	r.HandleFunc("/subscriptions", apiHandlers.GetSubscriptions).Methods(http.MethodGet)
	r.HandleFunc("/subscriptions", apiHandlers.PostSubscription).Methods(http.MethodPost)
	r.HandleFunc("/subscriptions/{id:[0-9]+}", apiHandlers.DeleteSubscription).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	log.Printf("Callback server starting on :%s (commit: %s)", port, CommitSHA)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
