package main

import (
	"log"
	"os"
	"strings"

	"github.com/skillswap/realtime/pkg/db"
)

func main() {
	hosts := []string{"localhost:9042"}
	if v := os.Getenv("SCYLLA_HOSTS"); v != "" {
		hosts = strings.Split(v, ",")
	}

	session, err := db.NewSession(hosts, db.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	tables := []string{
		"users",
		"conversations",
		"conversation_messages",
		"conversation_pairs",
		"user_conversations",
		"deals",
		"user_deals",
	}
	for _, table := range tables {
		log.Printf("Dropping table %s...", table)
		if err := session.Query("DROP TABLE IF EXISTS " + table).Exec(); err != nil {
			log.Fatalf("Failed to drop table %s: %v", table, err)
		}
	}
	log.Println("Tables dropped successfully.")
}
