package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// maxTextBytes caps normalized entry text so matching stays cheap on oversized
// stack traces.
const maxTextBytes = 8 << 10

// signature is the compiled matcher behind a pattern. phrase reports an
// exact-phrase occurrence that lifts confidence above the base.
type signature interface {
	match(text string) (hit, phrase bool)
}

type keywordSignature struct {
	keywords []string
	phrases  []string
}

func (s keywordSignature) match(text string) (bool, bool) {
	for _, kw := range s.keywords {
		if !strings.Contains(text, kw) {
			return false, false
		}
	}
	return true, containsAny(text, s.phrases)
}

type regexSignature struct {
	re      *regexp.Regexp
	phrases []string
}

func (s regexSignature) match(text string) (bool, bool) {
	if !s.re.MatchString(text) {
		return false, false
	}
	return true, containsAny(text, s.phrases)
}

// compile builds the runtime matcher for a validated spec. Keyword specs with
// multiple keywords and no declared phrases treat the keywords as one
// contiguous phrase for the confidence boost.
func compile(s Spec) (signature, error) {
	phrases := lowerNonEmpty(s.Phrases)
	switch Kind(s.Kind) {
	case KindKeyword:
		keywords := lowerNonEmpty(s.Keywords)
		if len(phrases) == 0 && len(keywords) > 1 {
			phrases = []string{strings.Join(keywords, " ")}
		}
		return keywordSignature{keywords: keywords, phrases: phrases}, nil
	case KindRegex:
		re, err := regexp.Compile("(?i)" + s.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile expr: %w", err)
		}
		return regexSignature{re: re, phrases: phrases}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", s.Kind)
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func lowerNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// normalizeText folds case and collapses whitespace so phrase matching works
// across line breaks in stack traces.
func normalizeText(parts ...string) string {
	joined := strings.TrimSpace(strings.Join(parts, " "))
	if joined == "" {
		return ""
	}
	joined = strings.ToLower(joined)
	joined = strings.Join(strings.Fields(joined), " ")
	if len(joined) > maxTextBytes {
		joined = joined[:maxTextBytes]
	}
	return joined
}
