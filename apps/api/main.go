package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/skillswap/realtime/pkg/broker"
	"github.com/skillswap/realtime/pkg/db"
	"github.com/skillswap/realtime/pkg/mailer"
	"github.com/skillswap/realtime/pkg/service"
	"github.com/skillswap/realtime/pkg/snowflake"
	"github.com/skillswap/realtime/pkg/store"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	scyllaHosts := strings.Split(envOr("SCYLLA_HOSTS", "localhost:9042"), ",")
	kafkaBrokers := strings.Split(envOr("KAFKA_BROKERS", "localhost:19092"), ",")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	baseURL := envOr("BASE_URL", "http://localhost:8081")
	webBaseURL := envOr("WEB_BASE_URL", "http://localhost:3000")
	addr := envOr("API_ADDR", ":8081")

	session, err := db.NewSession(scyllaHosts, db.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	// Node ID should be unique per instance in a real deployment.
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	st := store.NewScyllaStore(session, node)
	br := broker.NewKafkaBroker(kafkaBrokers, envOr("KAFKA_TOPIC", "conversation-events"))
	defer br.Close()

	enqueuer := mailer.NewEnqueuer(redisAddr)
	defer enqueuer.Close()

	svc := service.New(st, br, enqueuer, baseURL)

	mux := http.NewServeMux()

	// Public endpoints: login issues tokens, accept-deal is an email link
	// opened outside any authenticated session.
	mux.Handle("POST /login", CORSMiddleware(http.HandlerFunc(LoginHandler(svc))))
	mux.Handle("GET /accept-deal/{providerID}", CORSMiddleware(AcceptDealHandler(svc, webBaseURL)))

	// Protected endpoints
	mux.Handle("POST /conversations", CORSMiddleware(AuthMiddleware(CreateConversationHandler(svc))))
	mux.Handle("GET /conversations", CORSMiddleware(AuthMiddleware(FindConversationHandler(svc))))
	mux.Handle("GET /conversations/by-user/{userID}", CORSMiddleware(AuthMiddleware(ListConversationsHandler(svc))))
	mux.Handle("POST /messages", CORSMiddleware(AuthMiddleware(SendMessageHandler(svc))))
	mux.Handle("POST /deals", CORSMiddleware(AuthMiddleware(ProposeDealHandler(svc))))
	mux.Handle("GET /deals/by-user/{userID}", CORSMiddleware(AuthMiddleware(ListDealsHandler(svc))))

	log.Printf("API Service Starting on %s...", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
