package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/IlyushaZ/court-booking/pkg/model"
	"github.com/IlyushaZ/court-booking/pkg/service"
)

// RequesterHeader carries the opaque identity of the caller. It is set by the gateway in front of us.
const RequesterHeader = "X-Requester-ID"

const codeLimitExceeded = "limit_exceeded"

type ListPageResp[T any] struct {
	Page  []T `json:"page"`
	Total int `json:"total"`
}

type ErrorResp struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func errorStatus(code string) int {
	switch code {
	case "invalid_interval":
		return http.StatusBadRequest
	case "past_date":
		return http.StatusUnprocessableEntity
	case "resource_not_found", "reservation_not_found":
		return http.StatusNotFound
	case "invalid_transition":
		return http.StatusConflict
	case "busy":
		return http.StatusServiceUnavailable
	case codeLimitExceeded:
		return http.StatusTooManyRequests
	}

	if strings.HasPrefix(code, "slot_unavailable") {
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := model.Code(err)
	if errors.Is(err, service.ErrLimitExceeded) {
		code = codeLimitExceeded
	}

	status := errorStatus(code)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		// infrastructure details stay in the logs
		slog.Error("request failed", slog.String("code", code), slog.Any("error", err))
		detail = http.StatusText(status)
	}

	writeJSON(w, status, ErrorResp{Code: code, Detail: detail})
}

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, ErrorResp{Code: "bad_request", Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("can't encode response", slog.Any("error", err))
	}
}

func requester(r *http.Request) string {
	return r.Header.Get(RequesterHeader)
}

func parsePage(r *http.Request) (pageNum, pageSize int, err error) {
	q := r.URL.Query()
	pageNum, pageSize = service.DefaultPageNum, service.DefaultPageSize

	if pn := q.Get("page_num"); pn != "" {
		pageNum, err = strconv.Atoi(pn)
		if err != nil {
			return 0, 0, fmt.Errorf("can't parse page_num: %w", err)
		}
	}

	if ps := q.Get("page_size"); ps != "" {
		pageSize, err = strconv.Atoi(ps)
		if err != nil {
			return 0, 0, fmt.Errorf("can't parse page_size: %w", err)
		}
	}

	return pageNum, pageSize, nil
}
