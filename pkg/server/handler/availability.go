package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/ledger"
	"github.com/IlyushaZ/court-booking/pkg/model"
	"github.com/IlyushaZ/court-booking/pkg/service"
)

type AvailabilityResp struct {
	CourtID    string          `json:"court_id"`
	Date       model.Date      `json:"date"`
	SlotLength int             `json:"slot_length"` // minutes
	Buckets    []ledger.Bucket `json:"buckets"`
}

type FreeResp struct {
	Free bool `json:"free"`
}

// CourtAvailability enumerates buckets of the court's operating window on the date.
// Query: date (required), slot_length in minutes (60 by default), free_only.
func CourtAvailability(svc service.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := model.ParseDate(q.Get("date"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		slotLength := int(ledger.DefaultBucket / time.Minute)
		if sl := q.Get("slot_length"); sl != "" {
			slotLength, err = strconv.Atoi(sl)
			if err != nil {
				badRequest(w, fmt.Sprintf("can't parse slot_length: %v", err))
				return
			}
		}

		buckets, err := svc.FreeBuckets(r.Context(), r.PathValue("id"), date, time.Duration(slotLength)*time.Minute)
		if err != nil {
			writeError(w, err)
			return
		}

		if freeOnly, _ := strconv.ParseBool(q.Get("free_only")); freeOnly {
			buckets = ledger.FreeOnly(buckets)
		}

		if buckets == nil {
			buckets = []ledger.Bucket{}
		}

		writeJSON(w, http.StatusOK, AvailabilityResp{
			CourtID:    r.PathValue("id"),
			Date:       date,
			SlotLength: slotLength,
			Buckets:    buckets,
		})
	}
}

// CourtFree tells whether the interval given by date, start and end query params can be reserved now.
func CourtFree(svc service.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := model.ParseDate(q.Get("date"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		start, err := model.ParseTimeOfDay(q.Get("start"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		end, err := model.ParseTimeOfDay(q.Get("end"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		free, err := svc.IsFree(r.Context(), r.PathValue("id"), model.Interval{Date: date, Start: start, End: end})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, FreeResp{Free: free})
	}
}
