package patterns

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/utils"
)

// Kind selects the matching strategy a pattern compiles to.
type Kind string

const (
	KindKeyword Kind = "keyword"
	KindRegex   Kind = "regex"
)

// Spec declares a pattern in the shape carried by YAML packs. Keyword specs
// hit when every keyword occurs in the entry text; regex specs hit when the
// expression matches. Phrases lift confidence above the base on exact hits.
type Spec struct {
	ID             string   `yaml:"id" validate:"required"`
	Category       string   `yaml:"category" validate:"required"`
	Kind           string   `yaml:"kind" validate:"required,oneof=keyword regex"`
	Keywords       []string `yaml:"keywords"`
	Phrases        []string `yaml:"phrases"`
	Expr           string   `yaml:"expr"`
	BaseConfidence float64  `yaml:"base_confidence" validate:"required,gt=0,lte=1"`
	Causes         []string `yaml:"causes"`
}

// PackFile is the YAML root structure for a pattern pack.
type PackFile struct {
	Patterns []Spec `yaml:"patterns"`
}

var validate = validator.New()

func (s Spec) check() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("pattern %q: %w", s.ID, err)
	}
	if !models.Category(s.Category).Valid() {
		return fmt.Errorf("pattern %q: unknown category %q", s.ID, s.Category)
	}
	switch Kind(s.Kind) {
	case KindKeyword:
		if len(lowerNonEmpty(s.Keywords)) == 0 {
			return fmt.Errorf("pattern %q: keyword kind needs at least one keyword", s.ID)
		}
	case KindRegex:
		if s.Expr == "" {
			return fmt.Errorf("pattern %q: regex kind needs expr", s.ID)
		}
	}
	return nil
}

// readPack loads specs from a YAML pack on disk. A missing file yields no specs.
func readPack(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, utils.NewAppError("patterns.readPack", "read pattern pack", err)
	}
	var file PackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, utils.NewAppError("patterns.readPack", "parse pattern pack", err)
	}
	return file.Patterns, nil
}
