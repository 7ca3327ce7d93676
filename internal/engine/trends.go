package engine

import (
	"math"
	"sort"
	"time"

	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/utils"
)

// Observation is the projection of one analyzed error that trend detection
// consumes.
type Observation struct {
	Timestamp time.Time
	Category  models.Category
	Component string
	PatternID string
}

// TrendParams bounds trend detection across a batch.
type TrendParams struct {
	Bucket     time.Duration
	MinBuckets int
	MinCount   int
	StableBand float64
}

// DefaultTrendParams returns the bounds used when none are configured.
func DefaultTrendParams() TrendParams {
	return TrendParams{
		Bucket:     time.Hour,
		MinBuckets: 4,
		MinCount:   5,
		StableBand: 0.1,
	}
}

func (p TrendParams) withDefaults() TrendParams {
	d := DefaultTrendParams()
	if p.Bucket <= 0 {
		p.Bucket = d.Bucket
	}
	if p.MinBuckets < 2 {
		p.MinBuckets = d.MinBuckets
	}
	if p.MinCount < 2 {
		p.MinCount = d.MinCount
	}
	if p.StableBand <= 0 {
		p.StableBand = d.StableBand
	}
	return p
}

type bucketCounts map[time.Time]int

// DetectTrends reports how each category, component and pattern key moves
// across the observation window. The frequency series is split in half and
// the halves' means compared; keys with too few buckets or occurrences are
// skipped. Output order is fixed: dimension, then key.
func DetectTrends(observations []Observation, params TrendParams) []models.TrendRecord {
	params = params.withDefaults()
	if len(observations) == 0 {
		return nil
	}

	dims := map[models.TrendDimension]map[string]bucketCounts{
		models.TrendByCategory:  {},
		models.TrendByComponent: {},
		models.TrendByPattern:   {},
	}
	add := func(dim models.TrendDimension, key string, ts time.Time) {
		if key == "" {
			return
		}
		byKey := dims[dim]
		if byKey[key] == nil {
			byKey[key] = make(bucketCounts)
		}
		byKey[key][utils.BucketStart(ts, params.Bucket)]++
	}
	for _, obs := range observations {
		add(models.TrendByCategory, string(obs.Category), obs.Timestamp)
		add(models.TrendByComponent, obs.Component, obs.Timestamp)
		add(models.TrendByPattern, obs.PatternID, obs.Timestamp)
	}

	order := []models.TrendDimension{
		models.TrendByCategory,
		models.TrendByComponent,
		models.TrendByPattern,
	}
	records := make([]models.TrendRecord, 0, 8)
	for _, dim := range order {
		keys := make([]string, 0, len(dims[dim]))
		for key := range dims[dim] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if rec, ok := trendFor(dim, key, dims[dim][key], params); ok {
				records = append(records, rec)
			}
		}
	}
	return records
}

func trendFor(dim models.TrendDimension, key string, counts bucketCounts, params TrendParams) (models.TrendRecord, bool) {
	if len(counts) < params.MinBuckets {
		return models.TrendRecord{}, false
	}
	total := 0
	times := make([]time.Time, 0, len(counts))
	for ts, n := range counts {
		times = append(times, ts)
		total += n
	}
	if total < params.MinCount {
		return models.TrendRecord{}, false
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	values := make([]float64, 0, len(times))
	for _, ts := range times {
		values = append(values, float64(counts[ts]))
	}

	half := len(values) / 2
	firstMean := mean(values[:half])
	secondMean := mean(values[half:])
	denom := firstMean + secondMean

	rec := models.TrendRecord{Key: key, Dimension: dim, Trend: models.TrendStable}
	if denom == 0 {
		return rec, true
	}
	rec.Strength = math.Abs(secondMean-firstMean) / denom
	switch {
	case rec.Strength < params.StableBand:
		rec.Trend = models.TrendStable
	case secondMean > firstMean:
		rec.Trend = models.TrendIncreasing
	default:
		rec.Trend = models.TrendDecreasing
	}
	return rec, true
}
