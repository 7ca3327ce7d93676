package patterns

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/utils"
)

const defaultMatchLimit = 8

// Pattern is a compiled library entry.
type Pattern struct {
	ID             string
	Category       models.Category
	Kind           Kind
	BaseConfidence float64
	Causes         []string
	sig            signature
}

// Info is the read-only listing shape for a compiled pattern.
type Info struct {
	ID             string
	Category       models.Category
	Kind           Kind
	BaseConfidence float64
	Causes         []string
}

// Library holds compiled patterns and matches entries against them. A Library
// is immutable after construction and safe for concurrent use.
type Library struct {
	patterns   []Pattern
	causes     map[string][]string
	logger     *slog.Logger
	matchLimit int
}

// NewLibrary compiles specs into a Library, failing fast on invalid ones.
func NewLibrary(specs []Spec, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib := &Library{
		patterns:   make([]Pattern, 0, len(specs)),
		causes:     make(map[string][]string, len(specs)),
		logger:     logger,
		matchLimit: defaultMatchLimit,
	}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if err := spec.check(); err != nil {
			return nil, err
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("pattern %q: duplicate id", spec.ID)
		}
		seen[spec.ID] = struct{}{}
		sig, err := compile(spec)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec.ID, err)
		}
		p := Pattern{
			ID:             spec.ID,
			Category:       models.Category(spec.Category),
			Kind:           Kind(spec.Kind),
			BaseConfidence: spec.BaseConfidence,
			Causes:         append([]string(nil), spec.Causes...),
			sig:            sig,
		}
		lib.patterns = append(lib.patterns, p)
		lib.causes[p.ID] = p.Causes
	}
	return lib, nil
}

// Load combines the built-in pack with an optional YAML pack at path.
func Load(path string, logger *slog.Logger) (*Library, error) {
	specs := defaultSpecs()
	if path != "" {
		extra, err := readPack(path)
		if err != nil {
			return nil, err
		}
		if len(extra) > 0 && logger != nil {
			logger.Info("loaded pattern pack", slog.String("path", path), slog.Int("patterns", len(extra)))
		}
		specs = append(specs, extra...)
	}
	lib, err := NewLibrary(specs, logger)
	if err != nil {
		return nil, utils.NewAppError("patterns.Load", "compile pattern pack", err)
	}
	return lib, nil
}

// Default returns a library holding only the built-in pack.
func Default(logger *slog.Logger) *Library {
	lib, err := NewLibrary(defaultSpecs(), logger)
	if err != nil {
		// The built-in pack is fixed at compile time and must always be valid.
		panic(err)
	}
	return lib
}

// WithMatchLimit caps how many matches a single entry may produce.
func (l *Library) WithMatchLimit(limit int) *Library {
	if limit > 0 {
		l.matchLimit = limit
	}
	return l
}

// Match returns the patterns matching an entry, strongest first; ties keep
// declaration order. Malformed entries match nothing and never error.
func (l *Library) Match(entry models.ErrorEntry) []models.PatternMatch {
	text := normalizeText(entry.Description, entry.StackTrace)
	if text == "" {
		return nil
	}
	matches := make([]models.PatternMatch, 0, 4)
	for _, p := range l.patterns {
		hit, phrase := p.sig.match(text)
		if !hit {
			continue
		}
		confidence := p.BaseConfidence
		if phrase {
			confidence += (1 - confidence) * 0.5
		}
		matches = append(matches, models.PatternMatch{
			PatternID:  p.ID,
			Category:   p.Category,
			Confidence: confidence,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > l.matchLimit {
		matches = matches[:l.matchLimit]
	}
	return matches
}

// List returns a read-only snapshot of the compiled patterns.
func (l *Library) List() []Info {
	infos := make([]Info, 0, len(l.patterns))
	for _, p := range l.patterns {
		infos = append(infos, Info{
			ID:             p.ID,
			Category:       p.Category,
			Kind:           p.Kind,
			BaseConfidence: p.BaseConfidence,
			Causes:         append([]string(nil), p.Causes...),
		})
	}
	return infos
}

// Causes returns the related cause keys declared by a pattern, nil for
// unknown ids. The returned slice must not be mutated.
func (l *Library) Causes(id string) []string {
	return l.causes[id]
}

// Len reports how many patterns are loaded.
func (l *Library) Len() int {
	return len(l.patterns)
}
