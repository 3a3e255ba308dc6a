package main

import (
	"log"
	"os"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/skillswap/realtime/pkg/mailer"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	smtpHost := envOr("SMTP_HOST", "localhost")
	smtpPort, err := strconv.Atoi(envOr("SMTP_PORT", "587"))
	if err != nil {
		log.Fatalf("Invalid SMTP_PORT: %v", err)
	}
	smtpUser := os.Getenv("SMTP_USERNAME")
	smtpPass := os.Getenv("SMTP_PASSWORD")

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				mailer.QueueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mailer.RegisterSendEmail(mux, mailer.NewSMTPSender(smtpHost, smtpPort, smtpUser, smtpPass))

	log.Printf("Mail worker starting, redis=%s smtp=%s:%d", redisAddr, smtpHost, smtpPort)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Worker stopped: %v", err)
	}
}
