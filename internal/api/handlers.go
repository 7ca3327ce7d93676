package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/services"
	"github.com/faultstack/faultline/internal/utils"
)

const defaultHistoryLimit = 50

// Handlers exposes the analysis service over HTTP.
type Handlers struct {
	logger  *slog.Logger
	service *services.AnalysisService
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(logger *slog.Logger, service *services.AnalysisService) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, service: service}
}

// Register mounts the versioned analysis routes.
func (h *Handlers) Register(r gin.IRouter) {
	r.POST("/analyze", h.analyze)
	r.POST("/analyze/batch", h.analyzeBatch)
	r.GET("/patterns", h.patterns)
	r.GET("/history/recent", h.recentHistory)
}

// Health reports liveness and current history occupancy.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"history_entries": h.service.HistoryLen(),
	})
}

// errorEntryRequest is the wire shape of one submitted error. Unknown severity
// and category strings are accepted here; the engine normalizes them.
type errorEntryRequest struct {
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	Severity    string            `json:"severity"`
	Category    string            `json:"category"`
	Component   string            `json:"component"`
	Description string            `json:"description"`
	StackTrace  string            `json:"stack_trace"`
	Context     map[string]string `json:"context"`
	AutoFixable bool              `json:"auto_fixable"`
}

type batchRequest struct {
	Errors     []errorEntryRequest `json:"errors"`
	DeadlineMS int                 `json:"deadline_ms"`
}

type entryResponse struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Component   string `json:"component"`
	Description string `json:"description"`
}

type patternMatchResponse struct {
	PatternID  string  `json:"pattern_id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

type correlationResponse struct {
	Kind            string   `json:"kind"`
	RelatedErrorIDs []string `json:"related_error_ids"`
	Strength        float64  `json:"strength"`
}

type causeResponse struct {
	Description string   `json:"description"`
	Probability float64  `json:"probability"`
	Evidence    []string `json:"evidence"`
}

type actionResponse struct {
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

type rootCauseResponse struct {
	PossibleCauses     []causeResponse  `json:"possible_causes"`
	RecommendedActions []actionResponse `json:"recommended_actions"`
	Confidence         float64          `json:"confidence"`
}

type impactResponse struct {
	AffectedUsers     int     `json:"affected_users"`
	Disruption        string  `json:"disruption"`
	RevenueImpact     float64 `json:"revenue_impact"`
	ReputationRisk    string  `json:"reputation_risk"`
	PerformanceImpact float64 `json:"performance_impact"`
	OverallSeverity   string  `json:"overall_severity"`
}

type analysisResponse struct {
	Entry             entryResponse          `json:"entry"`
	EffectiveCategory string                 `json:"effective_category"`
	Patterns          []patternMatchResponse `json:"patterns"`
	Correlations      []correlationResponse  `json:"correlations"`
	RootCause         rootCauseResponse      `json:"root_cause"`
	Impact            impactResponse         `json:"impact"`
	Confidence        float64                `json:"confidence"`
	Note              string                 `json:"note,omitempty"`
	AnalyzedAt        string                 `json:"analyzed_at"`
}

type trendResponse struct {
	Dimension string  `json:"dimension"`
	Key       string  `json:"key"`
	Trend     string  `json:"trend"`
	Strength  float64 `json:"strength"`
}

type patternCountResponse struct {
	PatternID string `json:"pattern_id"`
	Count     int    `json:"count"`
}

type batchSummaryResponse struct {
	TotalErrors    int                    `json:"total_errors"`
	CategoryCounts map[string]int         `json:"category_counts"`
	TopPatterns    []patternCountResponse `json:"top_patterns"`
	Truncated      bool                   `json:"truncated"`
	Notes          []string               `json:"notes,omitempty"`
}

type batchResponse struct {
	Analyses           []analysisResponse    `json:"analyses"`
	Trends             []trendResponse       `json:"trends"`
	GlobalCorrelations []correlationResponse `json:"global_correlations"`
	Summary            batchSummaryResponse  `json:"summary"`
}

type patternInfoResponse struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Kind           string   `json:"kind"`
	BaseConfidence float64  `json:"base_confidence"`
	Causes         []string `json:"causes"`
}

type historyEntryResponse struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`
}

func (h *Handlers) analyze(c *gin.Context) {
	var req errorEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result := h.service.AnalyzeError(c.Request.Context(), fromEntryRequest(req))
	c.JSON(http.StatusOK, toAnalysisResponse(result))
}

func (h *Handlers) analyzeBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	ctx := c.Request.Context()
	if req.DeadlineMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.DeadlineMS)*time.Millisecond)
		defer cancel()
	}

	entries := make([]models.ErrorEntry, 0, len(req.Errors))
	for _, e := range req.Errors {
		entries = append(entries, fromEntryRequest(e))
	}

	result := h.service.AnalyzeBatch(ctx, entries)
	c.JSON(http.StatusOK, toBatchResponse(result))
}

func (h *Handlers) patterns(c *gin.Context) {
	infos := h.service.Patterns()
	out := make([]patternInfoResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, patternInfoResponse{
			ID:             info.ID,
			Category:       string(info.Category),
			Kind:           string(info.Kind),
			BaseConfidence: info.BaseConfidence,
			Causes:         info.Causes,
		})
	}
	c.JSON(http.StatusOK, gin.H{"patterns": out})
}

func (h *Handlers) recentHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries := h.service.RecentHistory(limit)
	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			Component: e.Component,
			Category:  string(e.Category),
			Severity:  string(e.Severity),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":        out,
		"total_retained": h.service.HistoryLen(),
	})
}

// fromEntryRequest maps the wire entry into the domain shape. Timestamps that
// fail to parse become zero and pick up the receive time downstream.
func fromEntryRequest(req errorEntryRequest) models.ErrorEntry {
	ts, _ := utils.ParseRFC3339(req.Timestamp)
	return models.ErrorEntry{
		ID:          req.ID,
		Timestamp:   ts,
		Severity:    models.Severity(req.Severity),
		Category:    models.Category(req.Category),
		Component:   req.Component,
		Description: req.Description,
		StackTrace:  req.StackTrace,
		Context:     req.Context,
		AutoFixable: req.AutoFixable,
	}
}

func toEntryResponse(e models.ErrorEntry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		Severity:    string(e.Severity),
		Category:    string(e.Category),
		Component:   e.Component,
		Description: e.Description,
	}
}

func toAnalysisResponse(result models.ErrorAnalysisResult) analysisResponse {
	patterns := make([]patternMatchResponse, 0, len(result.Patterns))
	for _, m := range result.Patterns {
		patterns = append(patterns, patternMatchResponse{
			PatternID:  m.PatternID,
			Category:   string(m.Category),
			Confidence: m.Confidence,
		})
	}

	causes := make([]causeResponse, 0, len(result.RootCause.PossibleCauses))
	for _, cause := range result.RootCause.PossibleCauses {
		causes = append(causes, causeResponse{
			Description: cause.Description,
			Probability: cause.Probability,
			Evidence:    cause.Evidence,
		})
	}
	actions := make([]actionResponse, 0, len(result.RootCause.RecommendedActions))
	for _, action := range result.RootCause.RecommendedActions {
		actions = append(actions, actionResponse{
			Description: action.Description,
			Priority:    action.Priority,
		})
	}

	return analysisResponse{
		Entry:             toEntryResponse(result.Entry),
		EffectiveCategory: string(result.EffectiveCategory),
		Patterns:          patterns,
		Correlations:      toCorrelationResponses(result.Correlations),
		RootCause: rootCauseResponse{
			PossibleCauses:     causes,
			RecommendedActions: actions,
			Confidence:         result.RootCause.Confidence,
		},
		Impact: impactResponse{
			AffectedUsers:     result.Impact.User.AffectedUsers,
			Disruption:        string(result.Impact.User.Disruption),
			RevenueImpact:     result.Impact.Business.RevenueImpact,
			ReputationRisk:    string(result.Impact.Business.ReputationRisk),
			PerformanceImpact: result.Impact.Technical.PerformanceImpact,
			OverallSeverity:   string(result.Impact.OverallSeverity),
		},
		Confidence: result.Confidence,
		Note:       result.Note,
		AnalyzedAt: result.AnalyzedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toCorrelationResponses(records []models.CorrelationRecord) []correlationResponse {
	out := make([]correlationResponse, 0, len(records))
	for _, r := range records {
		out = append(out, correlationResponse{
			Kind:            string(r.Kind),
			RelatedErrorIDs: r.RelatedErrorIDs,
			Strength:        r.Strength,
		})
	}
	return out
}

func toBatchResponse(result models.BatchAnalysisResult) batchResponse {
	analyses := make([]analysisResponse, 0, len(result.Analyses))
	for _, a := range result.Analyses {
		analyses = append(analyses, toAnalysisResponse(a))
	}

	trends := make([]trendResponse, 0, len(result.Trends))
	for _, tr := range result.Trends {
		trends = append(trends, trendResponse{
			Dimension: string(tr.Dimension),
			Key:       tr.Key,
			Trend:     string(tr.Trend),
			Strength:  tr.Strength,
		})
	}

	counts := make(map[string]int, len(result.Summary.CategoryCounts))
	for category, n := range result.Summary.CategoryCounts {
		counts[string(category)] = n
	}
	top := make([]patternCountResponse, 0, len(result.Summary.TopPatterns))
	for _, pc := range result.Summary.TopPatterns {
		top = append(top, patternCountResponse{PatternID: pc.PatternID, Count: pc.Count})
	}

	return batchResponse{
		Analyses:           analyses,
		Trends:             trends,
		GlobalCorrelations: toCorrelationResponses(result.GlobalCorrelations),
		Summary: batchSummaryResponse{
			TotalErrors:    result.Summary.TotalErrors,
			CategoryCounts: counts,
			TopPatterns:    top,
			Truncated:      result.Summary.Truncated,
			Notes:          result.Summary.Notes,
		},
	}
}
