// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/imagerecords/pkg/builder"
	"github.com/gomlx/imagerecords/pkg/config"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// buildFlags are the flags of the classification and segmentation commands.
type buildFlags struct {
	*datasetFlags
	progress, atomic, manifest, validatePairs *bool
}

func parseBuildFlags(name string, args []string) *buildFlags {
	fs := newFlagSet(name)
	bf := &buildFlags{
		datasetFlags: addDatasetFlags(fs),
		progress:     fs.Bool("progress", true, "Display a progress bar."),
		atomic: fs.Bool("atomic", false, "Write to a temporary file, renamed only if the build succeeds. "+
			"Otherwise a failed build leaves a partially written file."),
		manifest: fs.Bool("manifest", false, `Write a YAML manifest of each build next to its TFRecord file, `+
			`with the ".manifest.yaml" suffix.`),
	}
	if name == "segmentation" {
		bf.validatePairs = fs.Bool("validate_pairs", false,
			"Check that images and masks directories hold the same file names before writing anything.")
	}
	must.M(fs.Parse(args))
	if fs.NArg() > 0 {
		must.M(errors.Errorf("unexpected arguments %q", fs.Args()))
	}
	return bf
}

// hideCursor hides the terminal cursor while progress bars are displayed. The returned function restores it.
func (bf *buildFlags) hideCursor() (restore func()) {
	if !*bf.progress {
		return func() {}
	}
	out := termenv.NewOutput(os.Stdout)
	out.HideCursor()
	return out.ShowCursor
}

// newBuilder returns a Builder configured with the flags, for images of height x width.
func (bf *buildFlags) newBuilder(cfg *config.Config, height, width int) *builder.Builder {
	b := builder.New(height, width).
		WithCompression(cfg.Compression).
		WithProgressBar(*bf.progress).
		WithAtomicWrite(*bf.atomic)
	if bf.validatePairs != nil {
		b.WithPairValidation(*bf.validatePairs)
	}
	return b
}

func runClassification(args []string) {
	bf := parseBuildFlags("classification", args)
	cfg := bf.load()
	b := bf.newBuilder(cfg, cfg.Classification.Height, cfg.Classification.Width).
		WithCategories(must.M1(cfg.Categories()))
	restoreCursor := bf.hideCursor()
	defer restoreCursor()
	var reports []*builder.Report
	for _, split := range bf.selectSplits(cfg.Classification.Splits) {
		imagesDir := must.M1(cfg.ResolvePath(split.ImagesDir))
		recordFile := must.M1(cfg.ResolvePath(split.RecordFile))
		klog.Infof("Building classification split %q from %q", split.Name, imagesDir)
		report := must.M1(b.BuildClassification(imagesDir, recordFile))
		bf.writeManifest(report)
		reports = append(reports, report)
	}
	printReports(reports)
}

func runSegmentation(args []string) {
	bf := parseBuildFlags("segmentation", args)
	cfg := bf.load()
	b := bf.newBuilder(cfg, cfg.Segmentation.Height, cfg.Segmentation.Width)
	restoreCursor := bf.hideCursor()
	defer restoreCursor()
	var reports []*builder.Report
	for _, split := range bf.selectSplits(cfg.Segmentation.Splits) {
		imagesDir := must.M1(cfg.ResolvePath(split.ImagesDir))
		masksDir := must.M1(cfg.ResolvePath(split.MasksDir))
		recordFile := must.M1(cfg.ResolvePath(split.RecordFile))
		klog.Infof("Building segmentation split %q from %q and %q", split.Name, imagesDir, masksDir)
		report := must.M1(b.BuildSegmentation(imagesDir, masksDir, recordFile))
		bf.writeManifest(report)
		reports = append(reports, report)
	}
	printReports(reports)
}

func (bf *buildFlags) writeManifest(report *builder.Report) {
	if !*bf.manifest {
		return
	}
	manifestPath := manifestPathFor(report.RecordFile)
	must.M(report.WriteManifest(manifestPath))
	klog.Infof("Manifest written to %q", manifestPath)
}

// manifestPathFor returns the path of the manifest of a TFRecord file.
func manifestPathFor(recordFile string) string {
	for _, ext := range []string{".tfrecords.gz", ".tfrecords"} {
		if base, found := strings.CutSuffix(recordFile, ext); found {
			return base + ".manifest.yaml"
		}
	}
	return recordFile + ".manifest.yaml"
}

func printReports(reports []*builder.Report) {
	if len(reports) == 0 {
		return
	}
	fmt.Println(titleStyle.Render("Builds"))
	t := newTable(lipgloss.Left, lipgloss.Right)
	t.Headers("File", "Records", "Size", "Rewritten", "Time")
	for _, report := range reports {
		t.row(false, report.RecordFile,
			humanize.Comma(int64(report.NumRecords)),
			humanize.Bytes(uint64(report.BytesWritten)),
			humanize.Comma(int64(len(report.Rewritten))),
			report.Duration.Round(time.Millisecond).String())
	}
	fmt.Println(t.Render())
}
