package engine

import (
	"strings"

	"github.com/faultstack/faultline/internal/models"
)

// causeProfile describes one known root cause: how to phrase it, what to do
// about it, and which correlation kinds make it more likely.
type causeProfile struct {
	description string
	actions     []models.RecommendedAction
	affinity    map[models.CorrelationKind]float64
}

// causeCatalog covers every cause key the built-in pattern pack references.
// Pack files may introduce new keys; those fall back to a generic profile.
var causeCatalog = map[string]causeProfile{
	"unhandled-edge-case": {
		description: "An input combination the code never accounted for",
		actions: []models.RecommendedAction{
			{Description: "Reproduce with the captured context and add a regression test", Priority: 2},
			{Description: "Harden the failing code path against the missing case", Priority: 3},
		},
	},
	"missing-validation": {
		description: "Input reached business logic without being validated",
		actions: []models.RecommendedAction{
			{Description: "Add validation at the boundary that accepted the input", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationCategory: 0.3,
		},
	},
	"regression": {
		description: "A recent change broke previously working behaviour",
		actions: []models.RecommendedAction{
			{Description: "Review deployments that shipped shortly before the first occurrence", Priority: 1},
			{Description: "Roll back the suspect release if the errors continue", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal:  0.5,
			models.CorrelationComponent: 0.4,
		},
	},
	"race-condition": {
		description: "Concurrent operations interleaved in an unexpected order",
		actions: []models.RecommendedAction{
			{Description: "Audit shared state around the failing operation for missing synchronization", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal: 0.4,
		},
	},
	"partial-failure": {
		description: "A multi-step operation failed midway leaving inconsistent state",
		actions: []models.RecommendedAction{
			{Description: "Check compensating actions and retries around the failing step", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.3,
			models.CorrelationTemporal:  0.3,
		},
	},
	"missing-index": {
		description: "A query scans far more rows than it should",
		actions: []models.RecommendedAction{
			{Description: "Inspect the slow query plan and add the missing index", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.4,
		},
	},
	"database-overload": {
		description: "The database is saturated and shedding or delaying work",
		actions: []models.RecommendedAction{
			{Description: "Check database CPU, connections and replication lag", Priority: 1},
			{Description: "Throttle or cache the heaviest read paths", Priority: 3},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal: 0.5,
			models.CorrelationCategory: 0.3,
		},
	},
	"connection-pool-exhaustion": {
		description: "All pooled connections are in use or leaked",
		actions: []models.RecommendedAction{
			{Description: "Inspect pool utilization and look for connections never returned", Priority: 1},
			{Description: "Raise the pool ceiling only after ruling out a leak", Priority: 3},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.5,
			models.CorrelationTemporal:  0.3,
		},
	},
	"resource-saturation": {
		description: "CPU, memory or IO headroom is exhausted on the serving host",
		actions: []models.RecommendedAction{
			{Description: "Check host-level utilization for the affected component", Priority: 1},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal: 0.5,
			models.CorrelationCategory: 0.3,
		},
	},
	"memory-leak": {
		description: "Memory use grows without bound until allocation fails",
		actions: []models.RecommendedAction{
			{Description: "Capture a heap profile and compare against a healthy baseline", Priority: 2},
			{Description: "Restart the affected instances to buy time", Priority: 1},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.6,
		},
	},
	"network-partition": {
		description: "Hosts cannot reach each other across a network boundary",
		actions: []models.RecommendedAction{
			{Description: "Verify connectivity between the component and its dependencies", Priority: 1},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal:  0.7,
			models.CorrelationComponent: 0.3,
		},
	},
	"dependency-failure": {
		description: "A downstream service the component relies on is failing",
		actions: []models.RecommendedAction{
			{Description: "Check the health of downstream dependencies for this component", Priority: 1},
			{Description: "Verify timeouts and circuit breakers around the failing call", Priority: 3},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.5,
			models.CorrelationTemporal:  0.4,
		},
	},
	"contract-drift": {
		description: "A producer changed its schema or semantics under a consumer",
		actions: []models.RecommendedAction{
			{Description: "Diff the payloads against the consumer's expected contract", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.5,
			models.CorrelationCategory:  0.3,
		},
	},
	"migration-fault": {
		description: "A schema or data migration left records in a mixed state",
		actions: []models.RecommendedAction{
			{Description: "Audit recent migrations touching the affected tables", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationCategory: 0.5,
			models.CorrelationTemporal: 0.4,
		},
	},
	"data-corruption": {
		description: "Stored data no longer satisfies its own integrity rules",
		actions: []models.RecommendedAction{
			{Description: "Quarantine the affected records and trace how they were written", Priority: 1},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.4,
			models.CorrelationCategory:  0.4,
		},
	},
	"misconfigured-auth": {
		description: "Credentials or policies are wired up incorrectly",
		actions: []models.RecommendedAction{
			{Description: "Compare the auth configuration against the last known-good state", Priority: 1},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.4,
			models.CorrelationCategory:  0.4,
		},
	},
	"credential-expiry": {
		description: "A token, certificate or key passed its expiry",
		actions: []models.RecommendedAction{
			{Description: "Check expiry dates on the credentials used by the component", Priority: 1},
			{Description: "Automate rotation for the credential that lapsed", Priority: 4},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal: 0.6,
			models.CorrelationCategory: 0.4,
		},
	},
	"malicious-input": {
		description: "The payload looks crafted to probe or exploit the system",
		actions: []models.RecommendedAction{
			{Description: "Review request logs for related probing from the same origin", Priority: 1},
			{Description: "Confirm the input is rejected before reaching interpreters", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationCategory: 0.5,
			models.CorrelationTemporal: 0.4,
		},
	},
	"capacity-exhaustion": {
		description: "A finite resource such as disk space or quota ran out",
		actions: []models.RecommendedAction{
			{Description: "Free or expand the exhausted resource", Priority: 1},
			{Description: "Alert on usage before the ceiling is hit again", Priority: 3},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal: 0.6,
		},
	},
	"deployment-fault": {
		description: "A rollout left the component in a broken or mixed state",
		actions: []models.RecommendedAction{
			{Description: "Compare running versions across instances of the component", Priority: 1},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationTemporal:  0.7,
			models.CorrelationComponent: 0.5,
		},
	},
	"misconfiguration": {
		description: "A setting does not match what the environment requires",
		actions: []models.RecommendedAction{
			{Description: "Diff the component's configuration against the environment baseline", Priority: 2},
		},
		affinity: map[models.CorrelationKind]float64{
			models.CorrelationComponent: 0.5,
			models.CorrelationTemporal:  0.5,
		},
	},
}

// profileFor resolves a cause key to its catalog profile. Unknown keys from
// user pattern packs get a readable generic profile instead of an error.
func profileFor(key string) causeProfile {
	if p, ok := causeCatalog[key]; ok {
		return p
	}
	readable := strings.ReplaceAll(key, "-", " ")
	return causeProfile{
		description: "Suspected " + readable,
		actions: []models.RecommendedAction{
			{Description: "Investigate " + readable + " around the affected component", Priority: 3},
		},
	}
}
