package main

import (
	"encoding/json"
	"net/http"

	"github.com/skillswap/realtime/pkg/model"
	"github.com/skillswap/realtime/pkg/service"
)

func ProposeDealHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.ProposeDealRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		deal, err := svc.ProposeDeal(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeData(w, http.StatusCreated, deal)
	}
}

func ListDealsHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deals, err := svc.ListDeals(r.Context(), r.PathValue("userID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if deals == nil {
			deals = []*model.Deal{}
		}
		writeData(w, http.StatusOK, deals)
	}
}
