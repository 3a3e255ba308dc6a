package main

import (
	"net/http"
	"net/url"

	"github.com/skillswap/realtime/pkg/service"
)

// AcceptDealHandler serves the accept link from the proposal email:
// GET /accept-deal/{providerID}?providerEmail=&providerName=&seekerEmail=&seekerName=&seekerId=
// On success the browser is redirected to the chat view with the same
// participant parameters. Safe to hit twice: the conversation upsert is
// idempotent on the pair.
func AcceptDealHandler(svc *service.Service, webBaseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := r.PathValue("providerID")
		q := r.URL.Query()

		params := service.AcceptDealParams{
			ProviderEmail: q.Get("providerEmail"),
			ProviderName:  q.Get("providerName"),
			SeekerEmail:   q.Get("seekerEmail"),
			SeekerName:    q.Get("seekerName"),
			SeekerID:      q.Get("seekerId"),
		}

		if _, err := svc.AcceptDeal(r.Context(), providerID, params); err != nil {
			writeServiceError(w, err)
			return
		}

		redirect := url.Values{}
		redirect.Set("providerEmail", params.ProviderEmail)
		redirect.Set("providerName", params.ProviderName)
		redirect.Set("seekerEmail", params.SeekerEmail)
		redirect.Set("seekerName", params.SeekerName)
		redirect.Set("id", providerID)
		http.Redirect(w, r, webBaseURL+"/chat?"+redirect.Encode(), http.StatusFound)
	}
}
