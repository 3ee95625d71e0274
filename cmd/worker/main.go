package main

import (
	"log"
	"os"
	"time"

	"yt-notifier/internal/db"
	"yt-notifier/internal/eligibility"
	"yt-notifier/internal/hub"
	"yt-notifier/internal/summarize"
	"yt-notifier/internal/worker"
	"yt-notifier/pkg/tasks"

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

	callbackURL := os.Getenv("CALLBACK_BASE_URL")
	if callbackURL == "" {
		log.Fatal("CALLBACK_BASE_URL is not set")
	}
	callbackURL += "/websub/callback"

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			// One message at a time; redelivery is safe, parallel processing
			// buys nothing against external rate limits.
			Concurrency: 1,
			Queues: map[string]int{
				tasks.QueueRenewal: 2,
				"default":          1,
			},
			// Custom retry delay function for exponential backoff
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*60*1000) * time.Millisecond        // 5 minutes base
				maxDelay := time.Duration(24*60*60*1000) * time.Millisecond // 24 hours max

				// Exponential backoff: 5min, 10min, 20min, 40min, 80min, etc.
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}

				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	hubClient := hub.New(os.Getenv("WEBSUB_HUB_URL"))
	gate := eligibility.NewGate(client)
	transcripts := summarize.NewTranscriptClient(os.Getenv("TRANSCRIPT_API_URL"))
	summarizer := summarize.NewCachedSummarizer(summarize.NewSummaryClient(os.Getenv("SUMMARY_API_URL")))

	taskHandler := worker.NewTaskHandler(hubClient, gate, transcripts, summarizer, callbackURL)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeVideoEvent, taskHandler.HandleVideoEventTask)
	mux.HandleFunc(tasks.TypeRenewSubscriptions, taskHandler.HandleRenewSubscriptionsTask)
	mux.HandleFunc(tasks.TypeUsageAlert, taskHandler.HandleUsageAlertTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
