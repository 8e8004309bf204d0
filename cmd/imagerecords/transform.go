// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/imagerecords/pkg/config"
	"github.com/gomlx/imagerecords/pkg/transform"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func runTransform(args []string) {
	fs := newFlagSet("transform")
	df := addDatasetFlags(fs)
	kind := fs.String("kind", "segmentation", `Kind of records to transform, "classification" or "segmentation".`)
	must.M(fs.Parse(args))
	cfg := df.load()

	// Records are read with the configured compression, and written with the same.
	var tr *transform.Transformer
	var splits []config.Split
	switch *kind {
	case "classification":
		tr = transform.NewClassificationTransformer(cfg.Classification.Height, cfg.Classification.Width)
		splits = cfg.Classification.Splits
	case "segmentation":
		xf := cfg.Segmentation.Transform
		tr = transform.NewSegmentationTransformer(must.M1(cfg.Taxonomy()), xf.Height, xf.Width)
		splits = cfg.Segmentation.Splits
	default:
		must.M(errors.Errorf("invalid -kind=%q", *kind))
	}

	fmt.Println(titleStyle.Render("Transforms"))
	t := newTable(lipgloss.Left, lipgloss.Left, lipgloss.Right)
	t.Headers("Input", "Output", "Records")
	for _, split := range df.selectSplits(splits) {
		inPath := must.M1(cfg.ResolvePath(split.RecordFile))
		outPath := must.M1(cfg.ResolvePath(split.TransformedPath()))
		klog.Infof("Transforming %s split %q: %q -> %q", *kind, split.Name, inPath, outPath)
		n := must.M1(tr.TransformFile(inPath, outPath, cfg.Compression, cfg.Compression))
		t.row(false, inPath, outPath, humanize.Comma(int64(n)))
	}
	fmt.Println(t.Render())
}
