package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/presence"
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

	kafkaBrokers := strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaTopic := envOr("KAFKA_TOPIC", "conversation-events")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	addr := envOr("GATEWAY_ADDR", ":8080")

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	brk := broker.NewKafkaBroker(kafkaBrokers, kafkaTopic)
	defer brk.Close()

	// Presence edges must reach every gateway instance, so the tracker
	// publishes them through the same broker the hub listens on.
	tracker := presence.NewTracker(presence.NewRedisCounter(rdb), brk)

	hub := NewHub(brk, tracker)
	go hub.Run()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	log.Printf("Gateway server starting on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("ListenAndServe: %v", err)
	}
}
