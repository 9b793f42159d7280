package nucleus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/go-nucleus/mask"
)

// Pair is the ground truth and prediction for one image.
type Pair struct {
	Truth *mask.Mask
	Pred  *mask.Mask
}

// ImageResult is the evaluation of one image in a dataset.
type ImageResult struct {
	ID string
	*Result
}

// DatasetResult holds the per-image results and their unweighted mean.
type DatasetResult struct {
	Score  float64
	Images []ImageResult // sorted by ID
}

// Scores returns the per-image scores keyed by image id.
func (d *DatasetResult) Scores() map[string]float64 {
	out := make(map[string]float64, len(d.Images))
	for _, img := range d.Images {
		out[img.ID] = img.Score
	}
	return out
}

// Sweep sums object counts per threshold over all images and averages the
// per-image precision at each threshold.
func (d *DatasetResult) Sweep() []ThresholdResult {
	if len(d.Images) == 0 {
		return nil
	}
	agg := make([]ThresholdResult, len(d.Images[0].Sweep))
	for _, img := range d.Images {
		for i, r := range img.Sweep {
			if i >= len(agg) {
				break
			}
			agg[i].Threshold = r.Threshold
			agg[i].TruePositives += r.TruePositives
			agg[i].FalsePositives += r.FalsePositives
			agg[i].FalseNegatives += r.FalseNegatives
			agg[i].Precision += r.Precision
		}
	}
	for i := range agg {
		agg[i].Precision /= float64(len(d.Images))
	}
	return agg
}

// ScoreDataset scores every pair and averages the per-image scores.
//
// Images are scored concurrently, up to the configured worker count. The first
// failure cancels the remaining work and is returned with its image id.
func (s *Scorer) ScoreDataset(ctx context.Context, pairs map[string]Pair) (*DatasetResult, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptyDataset
	}

	ids := make([]string, 0, len(pairs))
	for id := range pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]ImageResult, len(ids))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := pairs[id]
			r, err := s.Score(p.Truth, p.Pred)
			if err != nil {
				return fmt.Errorf("scoring %s: %w", id, err)
			}
			results[i] = ImageResult{ID: id, Result: r}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			s.logger.Debug("scored image",
				"id", id,
				"score", r.Score,
				"true_objects", r.TrueObjects,
				"pred_objects", r.PredObjects,
				"matches", len(r.Matches),
				"progress", fmt.Sprintf("%d/%d", n, len(ids)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	out := &DatasetResult{
		Score:  sum / float64(len(results)),
		Images: results,
	}
	s.logger.Info("scored dataset", "images", len(results), "score", out.Score, "matcher", s.matcher.String())
	return out, nil
}
