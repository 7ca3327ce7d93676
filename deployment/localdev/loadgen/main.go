package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"time"
)

type errorReport struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    string    `json:"severity"`
	Category    string    `json:"category"`
	Component   string    `json:"component"`
	Description string    `json:"description"`
}

type batchPayload struct {
	Errors     []errorReport `json:"errors"`
	DeadlineMS int           `json:"deadline_ms,omitempty"`
}

type sample struct {
	severity    string
	category    string
	component   string
	description string
}

var samples = []sample{
	{"high", "functional", "orders-api", "Database connection timeout after 30 seconds"},
	{"medium", "performance", "search", "Latency spike above 2s on query endpoint"},
	{"high", "security", "auth-gateway", "Authentication failed for service account"},
	{"critical", "infrastructure", "worker-pool", "Out of memory while processing job queue"},
	{"medium", "integration", "payments", "Unexpected response from upstream provider"},
	{"low", "functional", "profile-service", "Nil pointer dereference in avatar renderer"},
	{"medium", "infrastructure", "ingest", "No space left on device when writing segment"},
	{"high", "integration", "notifications", "Gateway timed out calling email provider"},
	{"low", "data_quality", "catalog-sync", "Schema mismatch for field price_cents"},
	{"medium", "business_logic", "billing", "Invariant violated: invoice total below zero"},
}

func main() {
	var (
		target    string
		rate      float64
		duration  time.Duration
		batchSize int
	)
	flag.StringVar(&target, "target", "http://localhost:8080", "Base URL of the analysis service")
	flag.Float64Var(&rate, "rate", 5, "Requests per second")
	flag.DurationVar(&duration, "duration", 30*time.Second, "How long to generate load")
	flag.IntVar(&batchSize, "batch", 0, "Send batches of this size instead of single errors")
	flag.Parse()

	logger := log.New(log.Writer(), "loadgen ", log.LstdFlags|log.Lmicroseconds)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client := &http.Client{Timeout: 10 * time.Second}

	interval := time.Duration(float64(time.Second) / rate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent, failed := 0, 0
	categories := make(map[string]int)
	for now := range ticker.C {
		if now.After(deadline) {
			break
		}

		var verdicts []string
		var err error
		if batchSize > 1 {
			verdicts, err = postBatch(client, target, makeBatch(rng, batchSize))
		} else {
			verdicts, err = postSingle(client, target, makeReport(rng, 0))
		}
		sent++
		if err != nil {
			failed++
			logger.Printf("send failed: %v", err)
			continue
		}
		for _, v := range verdicts {
			categories[v]++
		}
	}

	logger.Printf("done: %d requests, %d failed", sent, failed)
	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Printf("  %-16s %d", k, categories[k])
	}
}

func makeReport(rng *rand.Rand, offset int) errorReport {
	s := samples[rng.Intn(len(samples))]
	return errorReport{
		ID:          fmt.Sprintf("load-%d-%d", time.Now().UnixNano(), offset),
		Timestamp:   time.Now().Add(-time.Duration(rng.Intn(120)) * time.Second),
		Severity:    s.severity,
		Category:    s.category,
		Component:   s.component,
		Description: s.description,
	}
}

func makeBatch(rng *rand.Rand, size int) batchPayload {
	reports := make([]errorReport, 0, size)
	for i := 0; i < size; i++ {
		reports = append(reports, makeReport(rng, i))
	}
	return batchPayload{Errors: reports, DeadlineMS: 5000}
}

func postSingle(client *http.Client, target string, report errorReport) ([]string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(target+"/api/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var verdict struct {
		EffectiveCategory string `json:"effective_category"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return []string{verdict.EffectiveCategory}, nil
}

func postBatch(client *http.Client, target string, payload batchPayload) ([]string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(target+"/api/v1/analyze/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Analyses []struct {
			EffectiveCategory string `json:"effective_category"`
		} `json:"analyses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	verdicts := make([]string, 0, len(result.Analyses))
	for _, a := range result.Analyses {
		verdicts = append(verdicts, a.EffectiveCategory)
	}
	return verdicts, nil
}
