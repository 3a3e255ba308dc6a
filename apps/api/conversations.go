package main

import (
	"encoding/json"
	"net/http"

	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/service"
)

type CreateConversationRequest struct {
	ProviderID string          `json:"providerId"`
	SeekerID   string          `json:"seekerId"`
	Messages   []model.Message `json:"messages"`
}

func CreateConversationHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		conversation, err := svc.CreateConversation(r.Context(), req.ProviderID, req.SeekerID, req.Messages)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeData(w, http.StatusCreated, conversation)
	}
}

// FindConversationHandler is the exact-pair lookup:
// GET /conversations?providerId=&seekerId=
func FindConversationHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := r.URL.Query().Get("providerId")
		seekerID := r.URL.Query().Get("seekerId")

		conversation, err := svc.FindConversation(r.Context(), providerID, seekerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeData(w, http.StatusOK, conversation)
	}
}

func ListConversationsHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, err := svc.ListConversations(r.Context(), r.PathValue("userID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if conversations == nil {
			conversations = []*model.Conversation{}
		}
		writeData(w, http.StatusOK, conversations)
	}
}
