package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/IlyushaZ/court-booking/pkg/model"
	"github.com/IlyushaZ/court-booking/pkg/service"
)

type CreateReservationReq struct {
	CourtID string          `json:"court_id"`
	Date    model.Date      `json:"date"`
	Start   model.TimeOfDay `json:"start"`
	End     model.TimeOfDay `json:"end"`
}

func ReservationCreate(svc service.Reservation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		if who == "" {
			badRequest(w, fmt.Sprintf("no %s header provided", RequesterHeader))
			return
		}

		var req CreateReservationReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, fmt.Sprintf("can't decode request: %v", err))
			return
		}

		if req.CourtID == "" {
			badRequest(w, "no court_id provided")
			return
		}

		res, err := svc.Create(r.Context(), service.CreateRequest{
			CourtID:   req.CourtID,
			Interval:  model.Interval{Date: req.Date, Start: req.Start, End: req.End},
			Requester: who,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, res)
	}
}

func ReservationGet(svc service.Reservation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func ReservationCancel(svc service.Reservation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Cancel(r.Context(), r.PathValue("id"), requester(r))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

// ReservationListPage lists reservations made by the requester, newest first.
func ReservationListPage(svc service.Reservation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := requester(r)
		if who == "" {
			badRequest(w, fmt.Sprintf("no %s header provided", RequesterHeader))
			return
		}

		pageNum, pageSize, err := parsePage(r)
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		var resp ListPageResp[model.Reservation]

		resp.Page, resp.Total, err = svc.ListByRequester(r.Context(), who, pageNum, pageSize)
		if err != nil {
			writeError(w, err)
			return
		}

		if resp.Page == nil {
			resp.Page = []model.Reservation{}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
