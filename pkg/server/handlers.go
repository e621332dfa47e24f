package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"conductor-hq/tollbooth/pkg/policy"
	"conductor-hq/tollbooth/pkg/receipt"
)

// decisionRequest is the POST /v1/decisions body.
type decisionRequest struct {
	Subject     string `json:"subject"`
	Action      string `json:"action"`
	PayloadHash string `json:"payload_hash"`
	ReceiptID   string `json:"receipt_id,omitempty"`
}

// decisionResponse pairs the computed decision with its signed receipt.
type decisionResponse struct {
	Decision *policy.Decision `json:"decision"`
	Receipt  *receipt.Receipt `json:"receipt"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start := time.Now()
	decision, rcpt, err := s.engine.Evaluate(r.Context(), policy.Request{
		Subject:     req.Subject,
		Action:      req.Action,
		PayloadHash: req.PayloadHash,
		ReceiptID:   req.ReceiptID,
	})
	if err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("decision failed", "error", err)
		writeError(w, http.StatusInternalServerError, "decision could not be recorded")
		return
	}

	if s.collector != nil {
		s.collector.RecordDecision(string(decision.Outcome), time.Since(start))
		if f, ok := s.estimator.Feature(policy.UnitFor(req.Action)); ok {
			s.collector.RecordFeature(f, s.estimator.Level(f.Unit))
		}
	}

	writeJSON(w, http.StatusOK, decisionResponse{Decision: decision, Receipt: rcpt})
}

// ruleResponse is one rule's state.
type ruleResponse struct {
	Key       policy.RuleKey `json:"key"`
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toRuleResponse(r *policy.Rule) ruleResponse {
	return ruleResponse{Key: r.Key, Enabled: r.Enabled, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.engine.Rules(r.Context())
	if err != nil {
		s.logger.Error("listing rules failed", "error", err)
		writeError(w, http.StatusInternalServerError, "rules unavailable")
		return
	}

	out := make([]ruleResponse, len(rules))
	for i, rule := range rules {
		out[i] = toRuleResponse(rule)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	key := policy.RuleKey(r.PathValue("key"))

	enabled, err := s.engine.Rule(r.Context(), key)
	if err != nil {
		if errors.Is(err, policy.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "unknown rule key")
			return
		}
		s.logger.Error("rule lookup failed", "rule", key, "error", err)
		writeError(w, http.StatusInternalServerError, "rule unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"key": key, "enabled": enabled})
}

// setRuleRequest is the PUT /v1/rules/{key} body.
type setRuleRequest struct {
	Enabled bool   `json:"enabled"`
	Actor   string `json:"actor"`
}

// setRuleResponse reports the applied state. Receipt is null when the
// toggle was a no-op.
type setRuleResponse struct {
	Key     policy.RuleKey   `json:"key"`
	Enabled bool             `json:"enabled"`
	Changed bool             `json:"changed"`
	Receipt *receipt.Receipt `json:"receipt,omitempty"`
}

func (s *Server) handleSetRule(w http.ResponseWriter, r *http.Request) {
	key := policy.RuleKey(r.PathValue("key"))

	var req setRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rcpt, err := s.engine.SetRule(r.Context(), key, req.Enabled, req.Actor)
	if err != nil {
		var verr *policy.ValidationError
		switch {
		case errors.Is(err, policy.ErrRuleNotFound):
			writeError(w, http.StatusNotFound, "unknown rule key")
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		default:
			s.logger.Error("rule toggle failed", "rule", key, "error", err)
			writeError(w, http.StatusInternalServerError, "rule toggle could not be recorded")
		}
		return
	}

	if s.collector != nil && rcpt != nil {
		s.collector.RecordRuleToggle(string(key))
	}

	writeJSON(w, http.StatusOK, setRuleResponse{
		Key:     key,
		Enabled: req.Enabled,
		Changed: rcpt != nil,
		Receipt: rcpt,
	})
}

// observationRequest is the POST /v1/observations body.
type observationRequest struct {
	Unit        string  `json:"unit"`
	ArrivalRate float64 `json:"arrival_rate"`
	ServiceRate float64 `json:"service_rate"`
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Unit == "" {
		writeError(w, http.StatusBadRequest, "unit must not be empty")
		return
	}

	f, err := s.estimator.Observe(r.Context(), req.Unit, req.ArrivalRate, req.ServiceRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	level := s.estimator.Level(req.Unit)
	if s.collector != nil {
		s.collector.RecordFeature(f, level)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"feature":          f,
		"protection_level": level,
	})
}

func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"features": s.estimator.AllFeatures()})
}

func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	unit := r.PathValue("unit")
	writeJSON(w, http.StatusOK, s.estimator.Summary(unit))
}

func (s *Server) handleQueryReceipts(w http.ResponseWriter, r *http.Request) {
	q, err := parseReceiptQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipts, err := s.ledger.Query(r.Context(), q)
	if err != nil {
		s.logger.Error("receipt query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "receipts unavailable")
		return
	}

	count, err := s.ledger.Count(r.Context(), q)
	if err != nil {
		s.logger.Error("receipt count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "receipts unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"receipts": receipts,
		"total":    count,
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rcpt, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		s.logger.Error("receipt lookup failed", "receipt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "receipt unavailable")
		return
	}

	writeJSON(w, http.StatusOK, rcpt)
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	valid, err := s.ledger.Verify(r.Context(), id)
	if err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		s.logger.Error("receipt verification failed", "receipt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "receipt unavailable")
		return
	}

	if s.collector != nil {
		s.collector.RecordVerification(valid)
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "valid": valid})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Storage reachability doubles as the readiness signal.
	if _, err := s.ledger.Count(r.Context(), &receipt.Query{Limit: 1}); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
