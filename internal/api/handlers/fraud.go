package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/api/middleware"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/jobs"
	"github.com/dvloznov/fraud-scoring/internal/logger"
	"github.com/rs/zerolog"
)

// dateLayout is the query format for history date filters.
const dateLayout = "2006-01-02"

// Scorer is the scoring entry point the API depends on.
type Scorer interface {
	Score(ctx context.Context, tx domain.Transaction, userID string) domain.ScoringResult
}

// FraudHandler serves scoring and scored-history endpoints.
type FraudHandler struct {
	scorer    Scorer
	publisher jobs.Publisher
	history   domain.FraudHistoryReader
	log       zerolog.Logger
}

// NewFraudHandler creates a new fraud handler. publisher and history may be
// nil, in which case the matching endpoints answer 503.
func NewFraudHandler(scorer Scorer, publisher jobs.Publisher, history domain.FraudHistoryReader, log zerolog.Logger) *FraudHandler {
	return &FraudHandler{
		scorer:    scorer,
		publisher: publisher,
		history:   history,
		log:       log,
	}
}

type scoreResponse struct {
	TransactionID string `json:"transaction_id,omitempty"`
	domain.ScoringResult
	FraudRisk string `json:"fraud_risk"`
}

// Score handles POST /api/fraud/score
func (h *FraudHandler) Score(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScoreRequest(w, r)
	if !ok {
		return
	}

	result := h.scorer.Score(r.Context(), req.Transaction(), req.UserID)

	middleware.WriteJSON(w, http.StatusOK, scoreResponse{
		TransactionID: req.TransactionID,
		ScoringResult: result,
		FraudRisk:     domain.RiskBand(result.FraudProbability),
	})
}

// ScoreAsync handles POST /api/fraud/score/async
func (h *FraudHandler) ScoreAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async scoring is not enabled")
		return
	}

	req, ok := decodeScoreRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	// The queue owns job once published; only its id is read afterwards.
	job := &jobs.ScoreTransactionJob{Request: req}
	if err := h.publisher.PublishScore(ctx, job); err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to enqueue scoring job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue scoring job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("user_id", req.UserID).Msg("Scoring job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":         job.JobID,
		"transaction_id": req.TransactionID,
		"status":         string(jobs.JobStatusPending),
	})
}

type historyRow struct {
	domain.ScoredTransaction
	FraudRisk string `json:"fraud_risk"`
}

// History handles GET /api/fraud/history
func (h *FraudHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Fraud history is not available")
		return
	}

	filter, msg := parseHistoryFilter(r)
	if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	page, err := h.history.FraudHistory(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", filter.UserID).Msg("Failed to query fraud history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query fraud history")
		return
	}

	rows := make([]historyRow, 0, len(page.Transactions))
	for _, tx := range page.Transactions {
		rows = append(rows, historyRow{
			ScoredTransaction: tx,
			FraudRisk:         domain.RiskBand(tx.FraudProbability),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_count":      page.TotalCount,
		"fraud_count":      page.FraudCount,
		"legitimate_count": page.LegitimateCount,
		"limit":            page.Limit,
		"offset":           page.Offset,
		"data":             rows,
	})
}

func decodeScoreRequest(w http.ResponseWriter, r *http.Request) (domain.ScoreRequest, bool) {
	var req domain.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// parseHistoryFilter returns a non-empty message when the query is invalid.
// Dates are whole days; the store extends end_date to the end of that day.
func parseHistoryFilter(r *http.Request) (domain.FraudHistoryFilter, string) {
	query := r.URL.Query()
	filter := domain.FraudHistoryFilter{UserID: query.Get("user_id")}
	if filter.UserID == "" {
		return filter, "user_id is required"
	}

	if s := query.Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return filter, "Invalid start_date format. Use YYYY-MM-DD"
		}
		filter.Start = &t
	}

	if s := query.Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return filter, "Invalid end_date format. Use YYYY-MM-DD"
		}
		filter.End = &t
	}

	if s := query.Get("is_fraud"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || (v != 0 && v != 1) {
			return filter, "is_fraud must be 0 or 1"
		}
		filter.IsFraud = &v
	}

	filter.Limit, filter.Offset = pagination(query.Get("limit"), query.Get("offset"))
	return filter, ""
}
