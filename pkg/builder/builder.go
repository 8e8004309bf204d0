// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package builder converts directories of images into TFRecord files of `tf.train.Example` records, the input
// of the classification and segmentation training pipelines.
//
// Two layouts are supported:
//
//   - Classification: `root/<category>/<image>`. The label is derived from the name of the category
//     directory (see taxonomy.Categories), and each record holds {"label": int64, "image_raw": bytes}.
//   - Segmentation: `images/<name>` and `masks/<name>`. Each record holds {"image_raw": bytes, "mask_raw": bytes}.
//
// Directories and files are visited in lexicographic order, so building twice over the same input produces
// byte-identical files.
//
// Images (and masks) that don't have the configured height and width are resized and written back in place
// before being read: building normalizes the input directory as a side effect. The raw bytes of the
// (possibly rewritten) files are stored as they are, without re-encoding.
//
// Builds are sequential and fail fast: the first unreadable file or unknown category aborts the build. No
// locking is done on the input files, so concurrent builds over the same directories are not supported.
package builder

import (
	"io"
	"os"
	"time"

	"github.com/gomlx/imagerecords/pkg/taxonomy"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Feature keys of the records. They are a compatibility contract with the training pipelines.
const (
	ImageKey = "image_raw"
	MaskKey  = "mask_raw"
	LabelKey = "label"
)

var (
	// ClassificationSchema lists the features of the classification records.
	ClassificationSchema = map[string]tfexample.Kind{LabelKey: tfexample.Int64Kind, ImageKey: tfexample.BytesKind}

	// SegmentationSchema lists the features of the segmentation records.
	SegmentationSchema = map[string]tfexample.Kind{ImageKey: tfexample.BytesKind, MaskKey: tfexample.BytesKind}
)

// Builder of TFRecord files from directories of images. Create it with New and configure it with the
// With* methods.
type Builder struct {
	height, width   int
	categories      *taxonomy.Categories
	compression     tfrecord.Compression
	showProgressBar bool
	progressWriter  io.Writer // If nil, progress bars are written to stdout.
	validatePairs   bool
	atomicWrite     bool
}

// New creates a Builder that normalizes images to height x width pixels.
//
// By default, records are written uncompressed, without progress bar, image/mask pairs are not validated
// upfront and a failed build leaves the partially written file behind.
func New(height, width int) *Builder {
	return &Builder{height: height, width: width}
}

// WithCategories sets the categories used to label classification images. Required by BuildClassification.
func (b *Builder) WithCategories(categories *taxonomy.Categories) *Builder {
	b.categories = categories
	return b
}

// WithCompression sets the compression of the generated TFRecord files.
func (b *Builder) WithCompression(compression tfrecord.Compression) *Builder {
	b.compression = compression
	return b
}

// WithProgressBar displays a progress bar while building.
func (b *Builder) WithProgressBar(show bool) *Builder {
	b.showProgressBar = show
	return b
}

// WithPairValidation makes BuildSegmentation check, before writing anything, that the images and masks
// directories hold exactly the same file names. Without it, masks without a matching image are silently
// ignored, and an image without its mask only fails when it is reached.
func (b *Builder) WithPairValidation(validate bool) *Builder {
	b.validatePairs = validate
	return b
}

// WithAtomicWrite makes builds write to a temporary file, which is renamed to the final path only if the
// build succeeds. Without it, a failed build leaves the partially written file in place.
func (b *Builder) WithAtomicWrite(atomic bool) *Builder {
	b.atomicWrite = atomic
	return b
}

func (b *Builder) checkSize() error {
	if b.height <= 0 || b.width <= 0 {
		return errors.Errorf("invalid target image size %dx%d (height x width)", b.height, b.width)
	}
	return nil
}

// sink owns the TFRecord writer of one build.
type sink struct {
	w                   *tfrecord.Writer
	finalPath, filePath string
}

func (b *Builder) openSink(sinkPath string) (*sink, error) {
	s := &sink{finalPath: sinkPath, filePath: sinkPath}
	if b.atomicWrite {
		s.filePath = sinkPath + ".tmp-" + uuid.NewString()
	}
	w, err := tfrecord.Create(s.filePath, b.compression)
	if err != nil {
		return nil, &IOFailure{Op: "create", Path: s.filePath, Err: err}
	}
	s.w = w
	return s, nil
}

func (s *sink) write(e *tfexample.Example) error {
	data, err := e.Marshal()
	if err != nil {
		return errors.WithMessage(err, "failed to serialize example")
	}
	if err = s.w.Write(data); err != nil {
		return &IOFailure{Op: "write", Path: s.filePath, Err: err}
	}
	return nil
}

// finish closes the writer, on every exit path of a build. buildErr is the error of the build so far, and
// the returned error is the one the build should return.
func (s *sink) finish(buildErr error) error {
	closeErr := s.w.Close()
	if buildErr == nil && closeErr != nil {
		buildErr = &IOFailure{Op: "close", Path: s.filePath, Err: closeErr}
	}
	if s.filePath == s.finalPath {
		return buildErr
	}
	if buildErr != nil {
		if err := os.Remove(s.filePath); err != nil {
			klog.Warningf("Failed to remove temporary file %q: %v", s.filePath, err)
		}
		return buildErr
	}
	if err := os.Rename(s.filePath, s.finalPath); err != nil {
		return &IOFailure{Op: "rename", Path: s.finalPath, Err: err}
	}
	return nil
}

func (b *Builder) newProgressBar(total int, description string) *progressbar.ProgressBar {
	if !b.showProgressBar {
		return nil
	}
	options := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	}
	if b.progressWriter != nil {
		options = append(options, progressbar.OptionSetWriter(b.progressWriter))
	}
	return progressbar.NewOptions(total, options...)
}

// closeProgressBar completes pBar if the build succeeded, or erases it from the terminal if it failed.
// pBar may be nil.
func closeProgressBar(pBar *progressbar.ProgressBar, buildErr error) {
	if pBar == nil {
		return
	}
	if buildErr != nil {
		_ = pBar.Clear()
		_ = pBar.Exit()
		return
	}
	_ = pBar.Close()
}

func newReport(kind string, b *Builder, sinkPath string) *Report {
	return &Report{
		Kind:        kind,
		RecordFile:  sinkPath,
		Compression: b.compression,
		Height:      b.height,
		Width:       b.width,
		started:     time.Now(),
	}
}
