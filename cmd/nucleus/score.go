package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	nucleus "github.com/jamesainslie/go-nucleus"
	"github.com/jamesainslie/go-nucleus/archive"
	"github.com/jamesainslie/go-nucleus/internal/dataset"
	"github.com/jamesainslie/go-nucleus/internal/report"
	"github.com/jamesainslie/go-nucleus/mask"
	"github.com/jamesainslie/go-nucleus/submission"
)

type scoreOptions struct {
	truthDir     string
	predDir      string
	predCSV      string
	predArchive  string
	matcher      string
	connectivity int
	workers      int
	thresholds   []float64
	sweep        bool
	perImage     bool
	worst        int
}

func newScoreCmd(a *app) *cobra.Command {
	var o scoreOptions

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score predicted masks against ground truth",
		Long: `Score predicted masks against ground-truth masks in stage-1 layout.

Predictions come from exactly one of --pred-dir (<id>.png binary masks),
--pred-csv (a submission file) or --pred-archive (written by predict --archive).
Images with no prediction are scored against an empty mask.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, a, &o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.truthDir, "truth", "", "Ground truth in stage-1 layout (<id>/masks/*.png)")
	f.StringVar(&o.predDir, "pred-dir", "", "Directory of <id>.png predicted masks")
	f.StringVar(&o.predCSV, "pred-csv", "", "Submission CSV with predicted objects")
	f.StringVar(&o.predArchive, "pred-archive", "", "Prediction archive written by predict --archive")
	f.StringVar(&o.matcher, "matcher", "greedy", "Object matching: greedy or hungarian")
	f.IntVar(&o.connectivity, "connectivity", 8, "Pixel connectivity for objects: 4 or 8")
	f.IntVar(&o.workers, "workers", runtime.NumCPU(), "Images scored concurrently")
	f.Float64SliceVar(&o.thresholds, "thresholds", nil, "IoU thresholds (default 0.50,0.55,...,0.95)")
	f.BoolVar(&o.sweep, "sweep", false, "Print the per-threshold table")
	f.BoolVar(&o.perImage, "per-image", false, "Print one line per image")
	f.IntVar(&o.worst, "worst", 0, "Print the N lowest scoring images")
	_ = cmd.MarkFlagRequired("truth")
	cmd.MarkFlagsMutuallyExclusive("pred-dir", "pred-csv", "pred-archive")
	cmd.MarkFlagsOneRequired("pred-dir", "pred-csv", "pred-archive")

	return cmd
}

func runScore(cmd *cobra.Command, a *app, o *scoreOptions) error {
	ctx := cmd.Context()

	matcher, err := nucleus.ParseMatcher(o.matcher)
	if err != nil {
		return err
	}
	conn, err := parseConnectivity(o.connectivity)
	if err != nil {
		return err
	}

	samples, err := dataset.LoadDir(o.truthDir)
	if err != nil {
		return err
	}

	preds, err := loadPredictions(o, samples)
	if err != nil {
		return err
	}

	pairs, err := loadPairs(ctx, samples, preds, o.workers)
	if err != nil {
		return err
	}
	missing, unknown := coverage(samples, preds)
	if missing > 0 {
		a.logger.Warn("images without predictions scored against an empty mask", "count", missing)
	}
	if unknown > 0 {
		a.logger.Warn("predictions for images not in the ground truth ignored", "count", unknown)
	}

	scorer := nucleus.NewScorer(
		nucleus.WithMatcher(matcher),
		nucleus.WithConnectivity(conn),
		nucleus.WithWorkers(o.workers),
		nucleus.WithThresholds(o.thresholds),
		nucleus.WithLogger(a.logger),
	)
	res, err := scorer.ScoreDataset(ctx, pairs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.perImage {
		report.Images(out, res.Images)
		fmt.Fprintln(out)
	}
	if o.worst > 0 {
		fmt.Fprintf(out, "Lowest %d images\n", o.worst)
		report.Images(out, report.Worst(res.Images, o.worst))
		fmt.Fprintln(out)
	}
	if o.sweep {
		report.Sweep(out, res.Sweep())
		fmt.Fprintln(out)
	}
	report.Summary(out, res)
	return nil
}

// predictionSource returns the predicted mask for a sample, or nil when the
// source has none for it.
type predictionSource func(s dataset.Sample) (*mask.Mask, error)

func loadPredictions(o *scoreOptions, samples []dataset.Sample) (map[string]predictionSource, error) {
	out := make(map[string]predictionSource, len(samples))

	switch {
	case o.predCSV != "":
		rows, err := submission.ReadFile(o.predCSV)
		if err != nil {
			return nil, err
		}
		for id, rles := range submission.Group(rows) {
			out[id] = func(s dataset.Sample) (*mask.Mask, error) {
				return mask.DecodeObjects(rles, s.Height, s.Width)
			}
		}

	case o.predArchive != "":
		records, err := archive.ReadFile(o.predArchive)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			out[r.ID] = func(dataset.Sample) (*mask.Mask, error) { return r.Mask, nil }
		}

	case o.predDir != "":
		for _, s := range samples {
			path := filepath.Join(o.predDir, s.ID+".png")
			if _, err := os.Stat(path); err != nil {
				continue
			}
			out[s.ID] = func(dataset.Sample) (*mask.Mask, error) {
				img, err := imaging.Open(path)
				if err != nil {
					return nil, fmt.Errorf("open prediction: %w", err)
				}
				return mask.FromImage(img, 0), nil
			}
		}

	default:
		return nil, errors.New("one of --pred-dir, --pred-csv or --pred-archive is required")
	}
	return out, nil
}

// coverage counts samples that have no prediction and predictions whose id
// is not a sample.
func coverage(samples []dataset.Sample, preds map[string]predictionSource) (missing, unknown int) {
	known := make(map[string]bool, len(samples))
	for _, s := range samples {
		known[s.ID] = true
		if _, ok := preds[s.ID]; !ok {
			missing++
		}
	}
	for id := range preds {
		if !known[id] {
			unknown++
		}
	}
	return missing, unknown
}

// loadPairs reads the ground truth of every sample with its prediction.
func loadPairs(ctx context.Context, samples []dataset.Sample, preds map[string]predictionSource, workers int) (map[string]nucleus.Pair, error) {
	pairs := make(map[string]nucleus.Pair, len(samples))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, s := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			truth, err := s.Truth()
			if err != nil {
				return err
			}
			pred := mask.New(s.Height, s.Width)
			if src, ok := preds[s.ID]; ok {
				if pred, err = src(s); err != nil {
					return fmt.Errorf("prediction %s: %w", s.ID, err)
				}
			}

			mu.Lock()
			pairs[s.ID] = nucleus.Pair{Truth: truth, Pred: pred}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}
