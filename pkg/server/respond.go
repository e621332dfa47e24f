package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"conductor-hq/tollbooth/pkg/receipt"
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseReceiptQuery builds a receipt query from URL parameters.
func parseReceiptQuery(r *http.Request) (*receipt.Query, error) {
	q := &receipt.Query{
		Subject: r.URL.Query().Get("subject"),
		Action:  r.URL.Query().Get("action"),
	}

	if decision := r.URL.Query().Get("decision"); decision != "" {
		outcome := receipt.Outcome(decision)
		if !outcome.Valid() {
			return nil, fmt.Errorf("unknown decision %q", decision)
		}
		q.Decision = outcome
	}

	if since := r.URL.Query().Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("invalid since timestamp: %w", err)
		}
		q.Since = &ts
	}
	if until := r.URL.Query().Get("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, fmt.Errorf("invalid until timestamp: %w", err)
		}
		q.Until = &ts
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid limit %q", limit)
		}
		q.Limit = n
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid offset %q", offset)
		}
		q.Offset = n
	}

	return q, nil
}
