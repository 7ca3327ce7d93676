package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/faultstack/faultline/internal/history"
	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/patterns"
	"github.com/faultstack/faultline/internal/utils"
)

const (
	maxTopPatterns         = 5
	dominantCategoryShare  = 0.3
	minBucketsForDeviation = 4
)

// Options bounds pipeline behaviour. Zero values fall back to defaults.
type Options struct {
	BatchParallelism int
	FutureSkew       time.Duration
	MaxTextBytes     int
	BurstWindow      time.Duration
	BurstThreshold   int
	MaxRelatedIDs    int
	Trend            TrendParams
}

// DefaultOptions returns the bounds used when none are configured.
func DefaultOptions() Options {
	return Options{
		FutureSkew:     5 * time.Minute,
		MaxTextBytes:   16 << 10,
		BurstWindow:    time.Minute,
		BurstThreshold: 3,
		MaxRelatedIDs:  10,
		Trend:          DefaultTrendParams(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchParallelism < 0 {
		o.BatchParallelism = 0
	}
	if o.FutureSkew <= 0 {
		o.FutureSkew = d.FutureSkew
	}
	if o.MaxTextBytes <= 0 {
		o.MaxTextBytes = d.MaxTextBytes
	}
	if o.BurstWindow <= 0 {
		o.BurstWindow = d.BurstWindow
	}
	if o.BurstThreshold < 2 {
		o.BurstThreshold = d.BurstThreshold
	}
	if o.MaxRelatedIDs <= 0 {
		o.MaxRelatedIDs = d.MaxRelatedIDs
	}
	o.Trend = o.Trend.withDefaults()
	return o
}

// Pipeline orchestrates the analysis flow: normalize, match, categorize,
// assess, correlate, then rank root causes. Correlation history is the only
// mutable state and lives behind the correlator's lock.
type Pipeline struct {
	logger     *slog.Logger
	library    *patterns.Library
	correlator *history.Correlator
	analyzer   *Analyzer
	opts       Options
}

// NewPipeline constructs an analysis pipeline.
func NewPipeline(
	logger *slog.Logger,
	library *patterns.Library,
	correlator *history.Correlator,
	analyzer *Analyzer,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if library == nil {
		library = patterns.Default(logger)
	}
	if correlator == nil {
		correlator = history.NewCorrelator(nil, history.DefaultParams(), logger)
	}
	if analyzer == nil {
		analyzer = NewAnalyzer(library, logger)
	}
	return &Pipeline{
		logger:     logger,
		library:    library,
		correlator: correlator,
		analyzer:   analyzer,
		opts:       opts.withDefaults(),
	}
}

// AnalyzeError runs the full flow for one entry. It never returns an error:
// malformed input is normalized and an isolated failure inside analysis
// degrades the result instead of propagating.
func (p *Pipeline) AnalyzeError(ctx context.Context, raw models.ErrorEntry) models.ErrorAnalysisResult {
	entry := p.normalize(raw, time.Now().UTC())
	return p.finishAnalysis(entry, p.statelessPhase(entry))
}

// AnalyzeBatch analyzes entries together: per-entry verdicts in input order
// plus cross-entry trends, global correlations and a summary. The stateless
// phases run in parallel; correlation runs serially in timestamp order so
// every record references strictly earlier errors.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, raw []models.ErrorEntry) models.BatchAnalysisResult {
	result := models.BatchAnalysisResult{
		Analyses: make([]models.ErrorAnalysisResult, len(raw)),
		Summary:  models.BatchSummary{CategoryCounts: make(map[models.Category]int, 8)},
	}
	if len(raw) == 0 {
		return result
	}

	started := time.Now()
	now := started.UTC()
	entries := make([]models.ErrorEntry, len(raw))
	for i := range raw {
		entries[i] = p.normalize(raw[i], now)
	}

	phases := make([]phaseResult, len(entries))
	limit := p.opts.BatchParallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range entries {
		i := i
		g.Go(func() error {
			phases[i] = p.statelessPhase(entries[i])
			return nil
		})
	}
	// Workers never fail; Wait only fences completion of every slot.
	_ = g.Wait()

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].Timestamp.Before(entries[order[b]].Timestamp)
	})
	for _, idx := range order {
		result.Analyses[idx] = p.finishAnalysis(entries[idx], phases[idx])
	}

	observations := make([]Observation, 0, len(entries))
	degraded := 0
	for i := range result.Analyses {
		analysis := &result.Analyses[i]
		result.Summary.CategoryCounts[analysis.EffectiveCategory]++
		if analysis.Note != "" {
			degraded++
		}
		obs := Observation{
			Timestamp: analysis.Entry.Timestamp,
			Category:  analysis.EffectiveCategory,
			Component: analysis.Entry.Component,
		}
		if len(analysis.Patterns) > 0 {
			obs.PatternID = analysis.Patterns[0].PatternID
		}
		observations = append(observations, obs)
	}
	result.Summary.TotalErrors = len(entries)
	result.Summary.TopPatterns = topPatterns(result.Analyses, maxTopPatterns)
	if degraded > 0 {
		result.Summary.Notes = append(result.Summary.Notes,
			fmt.Sprintf("%d of %d analyses degraded", degraded, len(entries)))
	}

	if err := ctx.Err(); err != nil {
		result.Summary.Truncated = true
		result.Summary.Notes = append(result.Summary.Notes,
			"trend and global correlation analysis skipped: "+err.Error())
		p.logger.Warn("batch truncated",
			slog.Int("entries", len(entries)),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err))
		return result
	}

	result.Trends = DetectTrends(observations, p.opts.Trend)
	result.GlobalCorrelations = p.globalCorrelations(entries, result.Analyses)
	return result
}

// phaseResult carries the stateless per-entry work into the serial phase.
type phaseResult struct {
	matches   []models.PatternMatch
	effective models.Category
	impact    models.ImpactAssessment
	note      string
}

func (p *Pipeline) statelessPhase(entry models.ErrorEntry) (phase phaseResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analysis phase panicked",
				slog.Any("error", r), slog.String("error_id", entry.ID))
			phase = phaseResult{
				effective: entry.Category,
				impact:    AssessImpact(entry, entry.Category),
				note:      fmt.Sprintf("analysis degraded: %v", r),
			}
		}
	}()
	matches := p.library.Match(entry)
	effective, _ := DeriveCategory(entry, matches)
	return phaseResult{
		matches:   matches,
		effective: effective,
		impact:    AssessImpact(entry, effective),
	}
}

func (p *Pipeline) finishAnalysis(entry models.ErrorEntry, phase phaseResult) (result models.ErrorAnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analysis panicked",
				slog.Any("error", r), slog.String("error_id", entry.ID))
			result = p.degradedResult(entry, phase, fmt.Sprintf("analysis degraded: %v", r))
		}
	}()
	if phase.note != "" {
		return p.degradedResult(entry, phase, phase.note)
	}

	correlations := p.correlator.Observe(history.View{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Component: entry.Component,
		Category:  phase.effective,
		Severity:  entry.Severity,
	})
	rootCause := p.analyzer.Analyze(entry, phase.effective, phase.matches, correlations)

	top := 0.0
	if len(phase.matches) > 0 {
		top = phase.matches[0].Confidence
	}
	confidence := clamp(0.5*top+0.3*rootCause.Confidence+0.2*maxCorrelationStrength(correlations), 0, 1)

	return models.ErrorAnalysisResult{
		Entry:             entry,
		EffectiveCategory: phase.effective,
		Patterns:          phase.matches,
		Correlations:      correlations,
		RootCause:         rootCause,
		Impact:            phase.impact,
		Confidence:        confidence,
		AnalyzedAt:        time.Now().UTC(),
	}
}

// degradedResult is the floor a broken analysis collapses to. It still honors
// the result shape: a valid effective category, an impact verdict and at
// least one cause.
func (p *Pipeline) degradedResult(entry models.ErrorEntry, phase phaseResult, note string) models.ErrorAnalysisResult {
	effective := phase.effective
	if effective == "" {
		effective = entry.Category
	}
	impact := phase.impact
	if impact.OverallSeverity == "" {
		impact = AssessImpact(entry, effective)
	}
	return models.ErrorAnalysisResult{
		Entry:             entry,
		EffectiveCategory: effective,
		Patterns:          phase.matches,
		Impact:            impact,
		RootCause: models.RootCauseAnalysis{
			PossibleCauses: []models.PossibleCause{{
				Description: "Analysis incomplete",
				Probability: 0.1,
				Evidence:    []string{note},
			}},
			RecommendedActions: defaultActions(entry),
			Confidence:         0.1,
		},
		Confidence: 0.1,
		Note:       note,
		AnalyzedAt: time.Now().UTC(),
	}
}

// normalize repairs a raw entry instead of rejecting it. Unknown enum values
// collapse to their defaults, oversized text is truncated, future timestamps
// are clamped and a missing id is derived from the content so resubmissions
// stay stable.
func (p *Pipeline) normalize(raw models.ErrorEntry, now time.Time) models.ErrorEntry {
	e := raw
	e.Component = strings.ToLower(strings.TrimSpace(e.Component))
	e.Description = truncateText(strings.TrimSpace(e.Description), p.opts.MaxTextBytes)
	e.StackTrace = truncateText(e.StackTrace, p.opts.MaxTextBytes)
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = utils.ClampFuture(e.Timestamp, now, p.opts.FutureSkew)
	e.Severity = models.ParseSeverity(strings.ToLower(strings.TrimSpace(string(e.Severity))))
	e.Category = models.ParseCategory(strings.ToLower(strings.TrimSpace(string(e.Category))))
	if e.ID == "" {
		e.ID = syntheticID(e)
	}
	return e
}

func truncateText(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return strings.ToValidUTF8(s[:limit], "")
	}
	return s
}

// syntheticID derives a stable id for entries submitted without one.
func syntheticID(e models.ErrorEntry) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", e.Component, e.Description, e.Timestamp.UTC().Format(time.RFC3339Nano))
	return fmt.Sprintf("gen-%016x", h.Sum64())
}

func topPatterns(analyses []models.ErrorAnalysisResult, limit int) []models.PatternCount {
	counts := make(map[string]int)
	for i := range analyses {
		if len(analyses[i].Patterns) > 0 {
			counts[analyses[i].Patterns[0].PatternID]++
		}
	}
	out := make([]models.PatternCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, models.PatternCount{PatternID: id, Count: n})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PatternID < out[j].PatternID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// globalCorrelations reports batch-wide groupings: components and categories
// that failed repeatedly, plus time buckets where errors pile up well above
// the batch norm.
func (p *Pipeline) globalCorrelations(entries []models.ErrorEntry, analyses []models.ErrorAnalysisResult) []models.CorrelationRecord {
	records := make([]models.CorrelationRecord, 0, 4)

	byComponent := make(map[string][]string)
	for _, e := range entries {
		if e.Component == "" {
			continue
		}
		byComponent[e.Component] = append(byComponent[e.Component], e.ID)
	}
	components := make([]string, 0, len(byComponent))
	for c := range byComponent {
		components = append(components, c)
	}
	sort.Strings(components)
	for _, c := range components {
		ids := uniqueStrings(byComponent[c])
		if len(ids) < 2 {
			continue
		}
		records = append(records, models.CorrelationRecord{
			Kind:            models.CorrelationComponent,
			RelatedErrorIDs: capStrings(ids, p.opts.MaxRelatedIDs),
			Strength:        clamp(float64(len(ids))/3, 0, 1),
		})
	}

	byCategory := make(map[models.Category][]string)
	for i := range analyses {
		byCategory[analyses[i].EffectiveCategory] = append(
			byCategory[analyses[i].EffectiveCategory], analyses[i].Entry.ID)
	}
	for _, cat := range models.Categories() {
		ids := uniqueStrings(byCategory[cat])
		if len(ids) < 2 {
			continue
		}
		share := float64(len(ids)) / float64(len(entries))
		if share < dominantCategoryShare {
			continue
		}
		records = append(records, models.CorrelationRecord{
			Kind:            models.CorrelationCategory,
			RelatedErrorIDs: capStrings(ids, p.opts.MaxRelatedIDs),
			Strength:        clamp(share, 0, 1),
		})
	}

	return append(records, p.burstRecords(entries)...)
}

// burstRecords flags bucket-sized spikes. With enough buckets the batch's own
// median absolute deviation sets the bar; small batches fall back to the raw
// threshold.
func (p *Pipeline) burstRecords(entries []models.ErrorEntry) []models.CorrelationRecord {
	buckets := make(map[time.Time][]string)
	for _, e := range entries {
		b := utils.BucketStart(e.Timestamp, p.opts.BurstWindow)
		buckets[b] = append(buckets[b], e.ID)
	}
	times := make([]time.Time, 0, len(buckets))
	counts := make([]float64, 0, len(buckets))
	for ts := range buckets {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for _, ts := range times {
		counts = append(counts, float64(len(buckets[ts])))
	}

	median := percentile(counts, 0.5)
	mad := meanAbsoluteDeviation(counts, median)
	if mad == 0 {
		mad = 1
	}

	records := make([]models.CorrelationRecord, 0, 2)
	for i, ts := range times {
		n := len(buckets[ts])
		if n < p.opts.BurstThreshold {
			continue
		}
		score := math.Abs(counts[i]-median) / mad
		if len(counts) >= minBucketsForDeviation && score < 3 {
			continue
		}
		records = append(records, models.CorrelationRecord{
			Kind:            models.CorrelationTemporal,
			RelatedErrorIDs: capStrings(uniqueStrings(buckets[ts]), p.opts.MaxRelatedIDs),
			Strength:        clamp(float64(n)/float64(2*(p.opts.BurstThreshold-1)), 0, 1),
		})
	}
	return records
}
