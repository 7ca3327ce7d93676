package patterns

// defaultSpecs returns the built-in pattern pack. Every category carries at
// least two signatures so categorization has signal without a custom pack.
func defaultSpecs() []Spec {
	return []Spec{
		// functional
		{
			ID:             "null-reference",
			Category:       "functional",
			Kind:           "regex",
			Expr:           `(null|nil) (pointer|reference)|nullpointerexception`,
			Phrases:        []string{"nil pointer dereference"},
			BaseConfidence: 0.7,
			Causes:         []string{"unhandled-edge-case", "missing-validation"},
		},
		{
			ID:             "unhandled-exception",
			Category:       "functional",
			Kind:           "keyword",
			Keywords:       []string{"unhandled", "exception"},
			BaseConfidence: 0.65,
			Causes:         []string{"unhandled-edge-case", "regression"},
		},
		{
			ID:             "assertion-failure",
			Category:       "functional",
			Kind:           "keyword",
			Keywords:       []string{"assertion"},
			Phrases:        []string{"assertion failed"},
			BaseConfidence: 0.6,
			Causes:         []string{"regression", "unhandled-edge-case"},
		},

		// performance
		{
			ID:             "slow-query",
			Category:       "performance",
			Kind:           "keyword",
			Keywords:       []string{"slow", "query"},
			BaseConfidence: 0.7,
			Causes:         []string{"missing-index", "database-overload"},
		},
		{
			ID:             "latency-spike",
			Category:       "performance",
			Kind:           "regex",
			Expr:           `latency (spike|exceeded|above|over)`,
			BaseConfidence: 0.65,
			Causes:         []string{"resource-saturation", "dependency-failure"},
		},
		{
			ID:             "out-of-memory",
			Category:       "performance",
			Kind:           "keyword",
			Keywords:       []string{"memory"},
			Phrases:        []string{"out of memory", "memory limit exceeded"},
			BaseConfidence: 0.55,
			Causes:         []string{"memory-leak", "resource-saturation"},
		},

		// security
		{
			ID:             "auth-failure",
			Category:       "security",
			Kind:           "keyword",
			Keywords:       []string{"authentication", "failed"},
			Phrases:        []string{"authentication failed"},
			BaseConfidence: 0.75,
			Causes:         []string{"credential-expiry", "misconfigured-auth"},
		},
		{
			ID:             "access-denied",
			Category:       "security",
			Kind:           "regex",
			Expr:           `access denied|permission denied|forbidden`,
			BaseConfidence: 0.7,
			Causes:         []string{"misconfigured-auth"},
		},
		{
			ID:             "injection-attempt",
			Category:       "security",
			Kind:           "keyword",
			Keywords:       []string{"injection"},
			Phrases:        []string{"sql injection"},
			BaseConfidence: 0.8,
			Causes:         []string{"malicious-input", "missing-validation"},
		},

		// usability
		{
			ID:             "form-rejected",
			Category:       "usability",
			Kind:           "keyword",
			Keywords:       []string{"invalid", "input"},
			Phrases:        []string{"invalid input"},
			BaseConfidence: 0.55,
			Causes:         []string{"missing-validation", "regression"},
		},
		{
			ID:             "ui-render-failure",
			Category:       "usability",
			Kind:           "keyword",
			Keywords:       []string{"render", "failed"},
			BaseConfidence: 0.6,
			Causes:         []string{"regression", "deployment-fault"},
		},

		// integration
		{
			ID:             "upstream-timeout",
			Category:       "integration",
			Kind:           "regex",
			Expr:           `(upstream|gateway|rpc).*(timed out|timeout)|deadline exceeded`,
			BaseConfidence: 0.7,
			Causes:         []string{"dependency-failure", "network-partition"},
		},
		{
			ID:             "unexpected-response",
			Category:       "integration",
			Kind:           "keyword",
			Keywords:       []string{"unexpected", "response"},
			Phrases:        []string{"unexpected response"},
			BaseConfidence: 0.6,
			Causes:         []string{"contract-drift", "dependency-failure"},
		},
		{
			ID:             "malformed-payload",
			Category:       "integration",
			Kind:           "keyword",
			Keywords:       []string{"malformed"},
			Phrases:        []string{"malformed payload", "malformed response"},
			BaseConfidence: 0.65,
			Causes:         []string{"contract-drift", "data-corruption"},
		},

		// infrastructure
		{
			ID:             "db-connection-timeout",
			Category:       "infrastructure",
			Kind:           "keyword",
			Keywords:       []string{"database", "connection", "timeout"},
			Phrases:        []string{"database connection timeout"},
			BaseConfidence: 0.75,
			Causes:         []string{"connection-pool-exhaustion", "database-overload", "network-partition"},
		},
		{
			ID:             "connection-refused",
			Category:       "infrastructure",
			Kind:           "keyword",
			Keywords:       []string{"connection", "refused"},
			Phrases:        []string{"connection refused"},
			BaseConfidence: 0.75,
			Causes:         []string{"dependency-failure", "deployment-fault"},
		},
		{
			ID:             "no-disk-space",
			Category:       "infrastructure",
			Kind:           "regex",
			Expr:           `no space left on device|disk (is )?full`,
			BaseConfidence: 0.8,
			Causes:         []string{"capacity-exhaustion"},
		},
		{
			ID:             "dns-failure",
			Category:       "infrastructure",
			Kind:           "regex",
			Expr:           `no such host|name resolution|dns`,
			BaseConfidence: 0.7,
			Causes:         []string{"network-partition", "misconfiguration"},
		},

		// business_logic
		{
			ID:             "invariant-violation",
			Category:       "business_logic",
			Kind:           "keyword",
			Keywords:       []string{"invariant"},
			Phrases:        []string{"invariant violated"},
			BaseConfidence: 0.7,
			Causes:         []string{"regression", "race-condition"},
		},
		{
			ID:             "state-conflict",
			Category:       "business_logic",
			Kind:           "keyword",
			Keywords:       []string{"inconsistent", "state"},
			Phrases:        []string{"inconsistent state"},
			BaseConfidence: 0.65,
			Causes:         []string{"race-condition", "partial-failure"},
		},

		// data_quality
		{
			ID:             "schema-mismatch",
			Category:       "data_quality",
			Kind:           "keyword",
			Keywords:       []string{"schema"},
			Phrases:        []string{"schema mismatch", "schema validation failed"},
			BaseConfidence: 0.65,
			Causes:         []string{"contract-drift", "migration-fault"},
		},
		{
			ID:             "duplicate-key",
			Category:       "data_quality",
			Kind:           "keyword",
			Keywords:       []string{"duplicate"},
			Phrases:        []string{"duplicate key"},
			BaseConfidence: 0.6,
			Causes:         []string{"race-condition", "migration-fault"},
		},
		{
			ID:             "missing-field",
			Category:       "data_quality",
			Kind:           "regex",
			Expr:           `missing (required )?(field|column|attribute)`,
			BaseConfidence: 0.65,
			Causes:         []string{"contract-drift", "missing-validation"},
		},
	}
}
