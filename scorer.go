package nucleus

import (
	"fmt"
	"log/slog"

	"github.com/jamesainslie/go-nucleus/mask"
)

// Result is the evaluation of one predicted mask against its ground truth.
type Result struct {
	// Score is the mean precision over all thresholds, in [0, 1].
	Score       float64
	Sweep       []ThresholdResult
	Matches     []Match
	TrueObjects int
	PredObjects int
}

// UnmatchedTrue returns the number of true objects without a partner.
func (r *Result) UnmatchedTrue() int { return r.TrueObjects - len(r.Matches) }

// UnmatchedPred returns the number of predicted objects without a partner.
func (r *Result) UnmatchedPred() int { return r.PredObjects - len(r.Matches) }

// Scorer computes the mean IoU-threshold precision of predicted nucleus masks.
// It holds no per-image state and is safe for concurrent use.
type Scorer struct {
	thresholds   []float64
	connectivity mask.Connectivity
	matcher      Matcher
	workers      int
	logger       *slog.Logger
}

// NewScorer creates a Scorer.
func NewScorer(opts ...Option) *Scorer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Scorer{
		thresholds:   cfg.thresholds,
		connectivity: cfg.connectivity,
		matcher:      cfg.matcher,
		workers:      cfg.workers,
		logger:       cfg.logger,
	}
}

// Thresholds returns a copy of the IoU thresholds in use.
func (s *Scorer) Thresholds() []float64 {
	return append([]float64(nil), s.thresholds...)
}

// Score labels both masks and evaluates the prediction against the truth.
func (s *Scorer) Score(truth, pred *mask.Mask) (*Result, error) {
	if truth == nil || pred == nil {
		return nil, fmt.Errorf("%w: nil mask", ErrShapeMismatch)
	}
	if !truth.SameShape(pred) {
		return nil, fmt.Errorf("%w: truth %dx%d, prediction %dx%d",
			ErrShapeMismatch, truth.Height, truth.Width, pred.Height, pred.Width)
	}

	return s.ScoreLabeled(mask.Label(truth, s.connectivity), mask.Label(pred, s.connectivity))
}

// ScoreLabeled evaluates two label maps that were already segmented.
func (s *Scorer) ScoreLabeled(truth, pred *mask.Labeled) (*Result, error) {
	im, err := NewIntersectionMatrix(truth, pred)
	if err != nil {
		return nil, err
	}

	matches := s.matcher.match(im)
	if err := resolveIoU(im, matches); err != nil {
		return nil, err
	}

	sweep := Sweep(matches, im.TrueObjects(), im.PredObjects(), s.thresholds)
	return &Result{
		Score:       MeanPrecision(sweep),
		Sweep:       sweep,
		Matches:     matches,
		TrueObjects: im.TrueObjects(),
		PredObjects: im.PredObjects(),
	}, nil
}

// Score evaluates pred against truth with the default settings and returns
// only the scalar score.
func Score(truth, pred *mask.Mask) (float64, error) {
	r, err := NewScorer().Score(truth, pred)
	if err != nil {
		return 0, err
	}
	return r.Score, nil
}
