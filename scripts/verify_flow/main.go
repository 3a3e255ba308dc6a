package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func call(method, url, token string, body any) json.RawMessage {
	var buf io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		log.Fatalf("%s %s: bad response: %v", method, url, err)
	}
	if !envelope.Success {
		log.Fatalf("%s %s: %s", method, url, envelope.Error)
	}
	return envelope.Data
}

func login(apiAddr, userID, name, email string) string {
	data := call("POST", apiAddr+"/login", "", map[string]string{
		"user_id": userID,
		"name":    name,
		"email":   email,
	})
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Fatal(err)
	}
	return resp.Token
}

// Exercises the whole deal-to-conversation flow against a running stack:
// two users log in, the seeker proposes a deal, the provider sends a
// reply, and both listings are fetched back.
func main() {
	apiAddr := "http://localhost:8081"
	if v := os.Getenv("API_ADDR"); v != "" {
		apiAddr = v
	}

	log.Println("Logging in both users...")
	seekerToken := login(apiAddr, "verify_seeker", "Verify Seeker", "seeker@example.com")
	providerToken := login(apiAddr, "verify_provider", "Verify Provider", "provider@example.com")
	fmt.Printf("Tokens: %s... / %s...\n", seekerToken[:10], providerToken[:10])

	log.Println("Proposing a deal...")
	call("POST", apiAddr+"/deals", seekerToken, map[string]any{
		"providerId":             "verify_provider",
		"seekerId":               "verify_seeker",
		"timeFrame":              "2 weeks",
		"skillOffered":           "Go programming",
		"numberOfSessions":       3,
		"selectedAvailabilities": []string{"2026-09-01 10:00"},
		"message":                "Deal proposal from verify_flow",
	})

	log.Println("Finding the conversation...")
	data := call("GET", apiAddr+"/conversations?providerId=verify_provider&seekerId=verify_seeker", seekerToken, nil)
	var conv struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &conv); err != nil {
		log.Fatal(err)
	}
	log.Printf("Conversation: %s", conv.ID)

	log.Println("Provider replies...")
	call("POST", apiAddr+"/messages", providerToken, map[string]string{
		"conversationId": conv.ID,
		"senderId":       "verify_provider",
		"content":        "Sounds good, let's do it",
	})

	log.Println("Listing conversations for the seeker...")
	data = call("GET", apiAddr+"/conversations/by-user/verify_seeker", seekerToken, nil)
	log.Printf("Conversations: %s", data)

	log.Println("Listing deals for the provider...")
	data = call("GET", apiAddr+"/deals/by-user/verify_provider", providerToken, nil)
	log.Printf("Deals: %s", data)

	log.Println("Verification complete.")
}
