package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultstack/faultline/internal/engine"
	"github.com/faultstack/faultline/internal/history"
	"github.com/faultstack/faultline/internal/patterns"
	"github.com/faultstack/faultline/internal/services"
	"github.com/faultstack/faultline/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := utils.NewLogger("error", false)
	library := patterns.Default(logger)
	correlator := history.NewCorrelator(history.NewStore(1000, time.Hour), history.DefaultParams(), logger)
	pipeline := engine.NewPipeline(logger, library, correlator, engine.NewAnalyzer(library, logger), engine.Options{})
	svc := services.NewAnalysisService(logger, pipeline, library, correlator)
	h := NewHandlers(logger, svc)

	router := gin.New()
	router.GET("/healthz", h.Health)
	h.Register(router.Group("/api/v1"))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndpoint(t *testing.T) {
	router := newTestRouter(t)
	body := fmt.Sprintf(`{
		"id": "api-1",
		"timestamp": %q,
		"severity": "high",
		"category": "functional",
		"component": "orders-api",
		"description": "Database connection timeout after 30 seconds"
	}`, time.Now().Add(-time.Minute).Format(time.RFC3339))

	w := postJSON(t, router, "/api/v1/analyze", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp analysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EffectiveCategory != "infrastructure" {
		t.Fatalf("expected infrastructure, got %s", resp.EffectiveCategory)
	}
	if len(resp.Patterns) == 0 || resp.Patterns[0].PatternID != "db-connection-timeout" {
		t.Fatalf("expected db-connection-timeout match, got %+v", resp.Patterns)
	}
	if len(resp.RootCause.PossibleCauses) == 0 {
		t.Fatal("expected root cause hypotheses")
	}
	if resp.Confidence <= 0 || resp.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", resp.Confidence)
	}
	if resp.AnalyzedAt == "" {
		t.Fatal("expected analyzed_at timestamp")
	}
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t)
	w := postJSON(t, router, "/api/v1/analyze", `{"id": "broken"`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid request body") {
		t.Fatalf("expected error message, got %s", w.Body.String())
	}
}

func TestAnalyzeNormalizesUnknownFields(t *testing.T) {
	router := newTestRouter(t)
	body := `{
		"severity": "catastrophic",
		"category": "weird",
		"component": "  Payment-Service  ",
		"description": "something odd happened"
	}`

	w := postJSON(t, router, "/api/v1/analyze", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown enum strings, got %d: %s", w.Code, w.Body.String())
	}

	var resp analysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Entry.Severity != "medium" {
		t.Fatalf("expected severity normalized to medium, got %s", resp.Entry.Severity)
	}
	if resp.Entry.Category != "functional" {
		t.Fatalf("expected category normalized to functional, got %s", resp.Entry.Category)
	}
	if resp.Entry.Component != "payment-service" {
		t.Fatalf("expected component canonicalized, got %q", resp.Entry.Component)
	}
	if !strings.HasPrefix(resp.Entry.ID, "gen-") {
		t.Fatalf("expected synthetic id, got %q", resp.Entry.ID)
	}
}

func TestAnalyzeBatchEndpoint(t *testing.T) {
	router := newTestRouter(t)
	base := time.Now().Add(-30 * time.Minute)

	var entries []string
	for i := 0; i < 3; i++ {
		entries = append(entries, fmt.Sprintf(`{
			"id": "batch-%d",
			"timestamp": %q,
			"severity": "medium",
			"category": "functional",
			"component": "checkout",
			"description": "Unexpected response from payment gateway"
		}`, i, base.Add(time.Duration(i)*time.Second).Format(time.RFC3339)))
	}
	body := fmt.Sprintf(`{"errors": [%s], "deadline_ms": 5000}`, strings.Join(entries, ","))

	w := postJSON(t, router, "/api/v1/analyze/batch", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Analyses) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(resp.Analyses))
	}
	if resp.Summary.TotalErrors != 3 {
		t.Fatalf("expected total 3, got %d", resp.Summary.TotalErrors)
	}
	if resp.Summary.Truncated {
		t.Fatal("batch should not truncate under a generous deadline")
	}
	sum := 0
	for _, n := range resp.Summary.CategoryCounts {
		sum += n
	}
	if sum != 3 {
		t.Fatalf("category counts sum %d, want 3", sum)
	}
	for i, a := range resp.Analyses {
		if a.Entry.ID != fmt.Sprintf("batch-%d", i) {
			t.Fatalf("analysis %d out of order: %s", i, a.Entry.ID)
		}
	}
}

func TestAnalyzeBatchEmptyBody(t *testing.T) {
	router := newTestRouter(t)
	w := postJSON(t, router, "/api/v1/analyze/batch", `{"errors": []}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty batch, got %d", w.Code)
	}
	var resp batchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Analyses) != 0 || resp.Summary.TotalErrors != 0 {
		t.Fatalf("expected empty result, got %+v", resp.Summary)
	}
}

func TestPatternsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := getPath(t, router, "/api/v1/patterns")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Patterns []patternInfoResponse `json:"patterns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Patterns) == 0 {
		t.Fatal("expected built-in patterns")
	}
	for _, p := range resp.Patterns {
		if p.ID == "" || p.Category == "" {
			t.Fatalf("incomplete pattern listing: %+v", p)
		}
	}
}

func TestRecentHistoryEndpoint(t *testing.T) {
	router := newTestRouter(t)
	body := fmt.Sprintf(`{
		"id": "hist-1",
		"timestamp": %q,
		"severity": "low",
		"category": "functional",
		"component": "search",
		"description": "Unexpected nil pointer dereference"
	}`, time.Now().Add(-time.Minute).Format(time.RFC3339))
	if w := postJSON(t, router, "/api/v1/analyze", body); w.Code != http.StatusOK {
		t.Fatalf("seed analyze failed: %d", w.Code)
	}

	w := getPath(t, router, "/api/v1/history/recent?limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Entries       []historyEntryResponse `json:"entries"`
		TotalRetained int                    `json:"total_retained"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].ID != "hist-1" {
		t.Fatalf("expected hist-1 in history, got %+v", resp.Entries)
	}
	if resp.TotalRetained != 1 {
		t.Fatalf("expected 1 retained, got %d", resp.TotalRetained)
	}

	if w := getPath(t, router, "/api/v1/history/recent?limit=abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
	if w := getPath(t, router, "/api/v1/history/recent?limit=-3"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := getPath(t, router, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", resp["status"])
	}
}
