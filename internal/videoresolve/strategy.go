package videoresolve

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"labelreel/internal/textutil"
)

// Strategy names the rule that produced a match.
type Strategy string

const (
	StrategyExact     Strategy = "exact"
	StrategySuffix    Strategy = "suffix"
	StrategyFuzzy     Strategy = "fuzzy"
	StrategySubstring Strategy = "substring"
)

// Confidence is a coarse trust tier attached to a match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Confidence returns the tier each strategy is trusted at.
func (s Strategy) Confidence() Confidence {
	switch s {
	case StrategyExact, StrategySuffix:
		return ConfidenceHigh
	case StrategyFuzzy:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// matchFunc picks one candidate for ref. Candidates arrive sorted, so the
// first hit in iteration order is the lexicographically first path.
type matchFunc func(ref string, candidates []string) (string, bool)

type step struct {
	strategy Strategy
	match    matchFunc
}

var hexPrefix = regexp.MustCompile(`^[0-9a-fA-F]+-`)

// RefBaseName extracts the file name from an export reference. Plain paths
// and URLs use their last path element; local-storage URLs of the form
// "/data/local-files/?d=videos/clip.mp4" use the d parameter.
func RefBaseName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil {
		if d := u.Query().Get("d"); d != "" {
			return path.Base(filepath.ToSlash(d))
		}
		if u.Path != "" {
			ref = u.Path
		}
	}
	base := path.Base(filepath.ToSlash(ref))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// SuffixName returns the part of name after its first dash, if any.
func SuffixName(name string) (string, bool) {
	_, after, found := strings.Cut(name, "-")
	if !found || after == "" {
		return "", false
	}
	return after, true
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func matchExact(ref string, candidates []string) (string, bool) {
	name := RefBaseName(ref)
	for _, candidate := range candidates {
		if filepath.Base(candidate) == name {
			return candidate, true
		}
	}
	return "", false
}

func matchSuffix(ref string, candidates []string) (string, bool) {
	suffix, ok := SuffixName(RefBaseName(ref))
	if !ok {
		return "", false
	}
	for _, candidate := range candidates {
		if filepath.Base(candidate) == suffix {
			return candidate, true
		}
	}
	return "", false
}

// fuzzyScore compares folded stems of the full reference name and of its
// suffix part against a candidate, keeping the better score.
func fuzzyScore(refName, candidate string) float64 {
	candidateStem := stem(filepath.Base(candidate))
	score := textutil.Similarity(stem(refName), candidateStem)
	if suffix, ok := SuffixName(refName); ok {
		score = max(score, textutil.Similarity(stem(suffix), candidateStem))
	}
	return score
}

// cleanStem strips the opaque upload prefix and folds the remainder.
func cleanStem(name string) string {
	return textutil.Fold(hexPrefix.ReplaceAllString(stem(name), ""))
}

func substringMatcher(minLength int) matchFunc {
	return func(ref string, candidates []string) (string, bool) {
		cleaned := cleanStem(RefBaseName(ref))
		if len([]rune(cleaned)) < minLength {
			return "", false
		}
		for _, candidate := range candidates {
			candidateStem := textutil.Fold(stem(filepath.Base(candidate)))
			if strings.Contains(candidateStem, cleaned) {
				return candidate, true
			}
			if len([]rune(candidateStem)) >= minLength && strings.Contains(cleaned, candidateStem) {
				return candidate, true
			}
		}
		return "", false
	}
}
