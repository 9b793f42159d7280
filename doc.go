// Package nucleus scores nucleus instance segmentations and runs the U-Net
// model that produces them.
//
// # Scoring
//
// Both masks are split into objects by connected-component labeling. True
// objects are paired with predicted objects, largest overlap first, and each
// pair's intersection over union is compared with the thresholds 0.50, 0.55,
// ..., 0.95. At every threshold the precision is tp/(tp+fp+fn); the score is
// their mean.
//
//	s := nucleus.NewScorer()
//	res, err := s.Score(truth, pred)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("score %.3f (%d of %d objects matched)\n", res.Score, len(res.Matches), res.TrueObjects)
//
// ScoreDataset scores many images concurrently and averages their scores.
//
// # Inference
//
//	p, err := nucleus.NewPredictor("models/unet-400.onnx", nucleus.WithPoolSize(2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	preds, err := p.PredictDir(ctx, "stage1_test")
//
// Each Prediction carries a binary mask at the original image size, ready for
// submission.Rows.
//
// # Thread Safety
//
// Scorer and Predictor are safe for concurrent use. Predictor manages an
// internal pool of ONNX sessions, configurable via WithPoolSize.
package nucleus
