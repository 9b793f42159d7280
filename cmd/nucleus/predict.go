package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	nucleus "github.com/jamesainslie/go-nucleus"
	"github.com/jamesainslie/go-nucleus/archive"
	"github.com/jamesainslie/go-nucleus/mask"
	"github.com/jamesainslie/go-nucleus/submission"
)

type predictOptions struct {
	dataDir        string
	checkpointDir  string
	checkpointFile string
	resultDir      string
	prefix         string
	archivePath    string
	ortLib         string
	inputName      string
	outputName     string
	batchSize      int
	imgSize        int
	gpuIndex       int
	poolSize       int
	connectivity   int
	threshold      float32
	logits         bool
	saveProba      bool
	saveMasks      bool
}

func newPredictCmd(a *app) *cobra.Command {
	var o predictOptions

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Segment a directory of images and write a submission file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, a, &o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.dataDir, "data-dir", "", "Directory in stage-1 layout (<id>/images/<id>.png)")
	f.StringVar(&o.checkpointDir, "checkpoint-dir", "models", "Directory holding <name>-<step>.onnx models")
	f.StringVar(&o.checkpointFile, "checkpoint-file", envDefault("NUCLEUS_MODEL", ""), "Model file; defaults to the highest step in --checkpoint-dir [$NUCLEUS_MODEL]")
	f.StringVar(&o.resultDir, "result-dir", "result", "Directory to write the submission and optional outputs")
	f.StringVar(&o.prefix, "prefix", "nucleus", "Submission file prefix")
	f.StringVar(&o.archivePath, "archive", "", "Also write predicted masks to this archive file")
	f.StringVar(&o.ortLib, "ort-lib", envDefault("NUCLEUS_ORT_LIB", ""), "Path to the onnxruntime shared library [$NUCLEUS_ORT_LIB]")
	f.StringVar(&o.inputName, "input-name", "X", "Model input tensor name")
	f.StringVar(&o.outputName, "output-name", "pred", "Model output tensor name")
	f.IntVar(&o.batchSize, "batch-size", 24, "Images per inference run")
	f.IntVar(&o.imgSize, "img-size", 256, "Model input height and width")
	f.IntVar(&o.gpuIndex, "gpu-index", -1, "CUDA device index; negative runs on the CPU")
	f.IntVar(&o.poolSize, "pool-size", 1, "Number of concurrent inference sessions")
	f.IntVar(&o.connectivity, "connectivity", 8, "Pixel connectivity for objects: 4 or 8")
	f.Float32Var(&o.threshold, "threshold", mask.DefaultThreshold, "Foreground probability threshold")
	f.BoolVar(&o.logits, "logits", false, "Model outputs logits; apply a sigmoid first")
	f.BoolVar(&o.saveProba, "save-proba", false, "Write probability maps to <result-dir>/proba")
	f.BoolVar(&o.saveMasks, "save-masks", false, "Write binary masks to <result-dir>/masks")
	_ = cmd.MarkFlagRequired("data-dir")

	return cmd
}

func runPredict(cmd *cobra.Command, a *app, o *predictOptions) error {
	ctx := cmd.Context()
	conn, err := parseConnectivity(o.connectivity)
	if err != nil {
		return err
	}

	modelPath, step, err := nucleus.ResolveModel(o.checkpointDir, o.checkpointFile)
	if err != nil {
		return err
	}
	a.logger.Info("loaded model", "path", modelPath, "step", step)

	p, err := nucleus.NewPredictor(modelPath,
		nucleus.WithPoolSize(o.poolSize),
		nucleus.WithInputSize(o.imgSize),
		nucleus.WithBatchSize(o.batchSize),
		nucleus.WithProbabilityThreshold(o.threshold),
		nucleus.WithIONames(o.inputName, o.outputName),
		nucleus.WithGPU(o.gpuIndex),
		nucleus.WithLogits(o.logits),
		nucleus.WithSharedLibraryPath(o.ortLib),
		nucleus.WithPredictorLogger(a.logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	preds, err := p.PredictDir(ctx, o.dataDir)
	if err != nil {
		return err
	}

	var rows []submission.Row
	records := make([]archive.Record, 0, len(preds))
	for _, pr := range preds {
		imgRows := submission.Rows(pr.ID, pr.Mask, conn)
		rows = append(rows, imgRows...)
		records = append(records, archive.Record{ID: pr.ID, Mask: pr.Mask})
		a.logger.Debug("encoded image", "id", pr.ID, "objects", len(imgRows), "height", pr.Height, "width", pr.Width)

		if o.saveProba {
			if err := savePNG(filepath.Join(o.resultDir, "proba"), pr.ID, pr.Proba); err != nil {
				return err
			}
		}
		if o.saveMasks {
			if err := savePNG(filepath.Join(o.resultDir, "masks"), pr.ID, pr.Mask.Gray()); err != nil {
				return err
			}
		}
	}

	out := filepath.Join(o.resultDir, submission.FileName(o.prefix, step))
	if err := submission.WriteFile(out, rows); err != nil {
		return err
	}
	a.logger.Info("wrote submission", "path", out, "images", len(preds), "rows", len(rows))

	if o.archivePath != "" {
		if err := archive.WriteFile(o.archivePath, records); err != nil {
			return err
		}
		a.logger.Info("wrote archive", "path", o.archivePath, "records", len(records))
	}
	return nil
}

func savePNG(dir, id string, img image.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := imaging.Save(img, filepath.Join(dir, id+".png")); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	return nil
}

func parseConnectivity(n int) (mask.Connectivity, error) {
	switch n {
	case 4:
		return mask.Connectivity4, nil
	case 8:
		return mask.Connectivity8, nil
	default:
		return 0, fmt.Errorf("invalid --connectivity %d: want 4 or 8", n)
	}
}
