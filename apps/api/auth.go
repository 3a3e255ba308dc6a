package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/skillswap/realtime/pkg/auth"
	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/service"
)

type LoginRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// LoginHandler upserts the user record and issues a token. A real
// deployment fronts this with the marketplace's credential check; the
// messaging core only needs a verified identity plus display fields.
func LoginHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}

		err := svc.RegisterUser(r.Context(), model.User{ID: req.UserID, Name: req.Name, Email: req.Email})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		token, err := auth.GenerateToken(req.UserID, req.Name, req.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}
		writeData(w, http.StatusOK, LoginResponse{Token: token})
	}
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
