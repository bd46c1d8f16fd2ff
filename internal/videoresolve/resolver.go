package videoresolve

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"labelreel/internal/logging"
)

// ErrNoMatchingVideo is returned when no strategy finds a local file.
var ErrNoMatchingVideo = errors.New("no matching video")

const (
	DefaultFuzzyThreshold     = 0.85
	DefaultMinSubstringLength = 4
)

// ResolvedVideo records which local file a reference resolved to and how.
type ResolvedVideo struct {
	Ref        string
	Path       string
	Strategy   Strategy
	Confidence Confidence
}

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	FuzzyThreshold     float64
	MinSubstringLength int
	Logger             *slog.Logger
}

// Resolver runs the strategy chain against a set of candidate files.
type Resolver struct {
	threshold float64
	steps     []step
	logger    *slog.Logger
}

// New builds a Resolver.
func New(opts Options) *Resolver {
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if opts.MinSubstringLength <= 0 {
		opts.MinSubstringLength = DefaultMinSubstringLength
	}
	r := &Resolver{
		threshold: opts.FuzzyThreshold,
		logger:    logging.NewComponentLogger(opts.Logger, "videoresolve"),
	}
	r.steps = []step{
		{strategy: StrategyExact, match: matchExact},
		{strategy: StrategySuffix, match: matchSuffix},
		{strategy: StrategyFuzzy, match: r.matchFuzzy},
		{strategy: StrategySubstring, match: substringMatcher(opts.MinSubstringLength)},
	}
	return r
}

// Resolve maps ref to one of available. The first strategy that matches
// wins; later strategies are never consulted.
func (r *Resolver) Resolve(ref string, available []string) (ResolvedVideo, error) {
	if RefBaseName(ref) == "" {
		return ResolvedVideo{}, fmt.Errorf("%w: empty video reference", ErrNoMatchingVideo)
	}
	candidates := slices.Clone(available)
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	for _, s := range r.steps {
		path, ok := s.match(ref, candidates)
		if !ok {
			continue
		}
		resolved := ResolvedVideo{
			Ref:        ref,
			Path:       path,
			Strategy:   s.strategy,
			Confidence: s.strategy.Confidence(),
		}
		r.logger.Debug("video reference resolved",
			logging.String("ref", ref),
			logging.String("path", path),
			logging.String("strategy", string(s.strategy)),
		)
		return resolved, nil
	}
	return ResolvedVideo{}, fmt.Errorf("%w: %s", ErrNoMatchingVideo, ref)
}

func (r *Resolver) matchFuzzy(ref string, candidates []string) (string, bool) {
	name := RefBaseName(ref)
	best := -1.0
	var hits []string
	for _, candidate := range candidates {
		score := fuzzyScore(name, candidate)
		switch {
		case score > best:
			best = score
			hits = append(hits[:0], candidate)
		case score == best:
			hits = append(hits, candidate)
		}
	}
	if len(hits) == 0 || best <= r.threshold {
		return "", false
	}
	if len(hits) > 1 {
		r.logger.Warn("ambiguous fuzzy video match",
			logging.String("ref", ref),
			logging.Float64("score", best),
			logging.Int("candidates", len(hits)),
			logging.String("selected", hits[0]),
		)
	}
	return hits[0], true
}
