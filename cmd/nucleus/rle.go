package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-nucleus/internal/dataset"
	"github.com/jamesainslie/go-nucleus/internal/report"
	"github.com/jamesainslie/go-nucleus/mask"
	"github.com/jamesainslie/go-nucleus/submission"
)

// errRoundTrip is returned by rle --check when any image fails to round-trip.
var errRoundTrip = errors.New("run length encoding round trip failed")

type rleOptions struct {
	dataDir      string
	connectivity int
	check        bool
	minSize      float64
}

type namedMask struct {
	id string
	m  *mask.Mask
}

func newRLECmd(a *app) *cobra.Command {
	var o rleOptions

	cmd := &cobra.Command{
		Use:   "rle [mask.png ...]",
		Short: "Encode binary masks as submission rows or check the round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRLE(cmd, a, &o, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.dataDir, "data-dir", "", "Encode the ground truth of every sample in stage-1 layout")
	f.IntVar(&o.connectivity, "connectivity", 8, "Pixel connectivity for objects: 4 or 8")
	f.BoolVar(&o.check, "check", false, "Decode each encoding and report pixel matches and misses")
	f.Float64Var(&o.minSize, "min-size", -1, "Smallest object area to keep; negative scales 20 pixels per 256x256")

	return cmd
}

func runRLE(cmd *cobra.Command, a *app, o *rleOptions, args []string) error {
	conn, err := parseConnectivity(o.connectivity)
	if err != nil {
		return err
	}
	masks, err := loadMasks(o.dataDir, args)
	if err != nil {
		return err
	}
	if len(masks) == 0 {
		return errors.New("no masks given: pass mask files or --data-dir")
	}

	out := cmd.OutOrStdout()
	if o.check {
		checks := make([]report.Check, len(masks))
		for i, nm := range masks {
			checks[i], err = roundTrip(nm, conn, o.minSize)
			if err != nil {
				return err
			}
		}
		if failed := report.Checks(out, checks); failed > 0 {
			return fmt.Errorf("%w: %d of %d images", errRoundTrip, failed, len(checks))
		}
		return nil
	}

	var rows []submission.Row
	for _, nm := range masks {
		minSize := o.minSize
		if minSize < 0 {
			minSize = mask.MinObjectSize(nm.m.Height, nm.m.Width)
		}
		for rle := range mask.EncodeObjects(nm.m, minSize, conn) {
			rows = append(rows, submission.Row{ImageID: nm.id, RLE: rle})
		}
	}
	a.logger.Debug("encoded masks", "images", len(masks), "rows", len(rows))
	return submission.Write(out, rows)
}

// roundTrip encodes the kept objects of a mask, decodes them and compares the
// result with the same objects painted directly.
func roundTrip(nm namedMask, conn mask.Connectivity, minSize float64) (report.Check, error) {
	h, w := nm.m.Height, nm.m.Width
	if minSize < 0 {
		minSize = mask.MinObjectSize(h, w)
	}

	var rles []mask.RLE
	for rle := range mask.EncodeObjects(nm.m, minSize, conn) {
		rles = append(rles, rle)
	}
	decoded, err := mask.DecodeObjects(rles, h, w)
	if err != nil {
		return report.Check{}, fmt.Errorf("%s: %w", nm.id, err)
	}

	kept := keptObjects(nm.m, conn, minSize)
	c := report.Check{ID: nm.id}
	for i := range kept.Pix {
		if kept.Pix[i] == decoded.Pix[i] {
			c.Matches++
		} else {
			c.Misses++
		}
	}
	return c, nil
}

func keptObjects(m *mask.Mask, conn mask.Connectivity, minSize float64) *mask.Mask {
	l := mask.Label(m, conn)
	areas := l.Areas()
	out := mask.New(m.Height, m.Width)
	for i, id := range l.Labels {
		if id > 0 && float64(areas[id]) >= minSize {
			out.Pix[i] = true
		}
	}
	return out
}

func loadMasks(dataDir string, paths []string) ([]namedMask, error) {
	var out []namedMask
	if dataDir != "" {
		samples, err := dataset.LoadDir(dataDir)
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			if !s.HasMasks() {
				continue
			}
			truth, err := s.Truth()
			if err != nil {
				return nil, err
			}
			out = append(out, namedMask{id: s.ID, m: truth})
		}
	}
	for _, path := range paths {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open mask: %w", err)
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out = append(out, namedMask{id: id, m: mask.FromImage(img, 0)})
	}
	return out, nil
}
