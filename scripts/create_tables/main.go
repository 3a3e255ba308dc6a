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

	// Connect without a keyspace first so it can be created.
	session, err := db.NewSession(hosts, "system")
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	if err := db.CreateKeyspace(session); err != nil {
		log.Fatalf("Failed to create keyspace: %v", err)
	}
	session.Close()

	session, err = db.NewSession(hosts, db.Keyspace)
	if err != nil {
		log.Fatalf("Failed to connect to keyspace %s: %v", db.Keyspace, err)
	}
	defer session.Close()

	if err := db.CreateSchema(session); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	log.Println("Schema created successfully")
}
