// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/imagerecords/pkg/taxonomy"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeImage writes a uniform image of the given size, in the format implied by the file extension.
func writeImage(t *testing.T, filePath string, height, width int, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, imaging.Save(imaging.New(width, height, c), filePath))
}

// imageSize returns the decoded height and width of the image in filePath.
func imageSize(t *testing.T, filePath string) (height, width int) {
	t.Helper()
	img, err := imaging.Open(filePath)
	require.NoError(t, err)
	size := img.Bounds().Size()
	return size.Y, size.X
}

func readExamples(t *testing.T, filePath string, compression tfrecord.Compression) []*tfexample.Example {
	t.Helper()
	records, err := tfrecord.ReadAll(filePath, compression)
	require.NoError(t, err)
	examples := make([]*tfexample.Example, len(records))
	for ii, record := range records {
		examples[ii], err = tfexample.Unmarshal(record)
		require.NoError(t, err)
	}
	return examples
}

func readFile(t *testing.T, filePath string) []byte {
	t.Helper()
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	return data
}

func classificationBuilder() *Builder {
	return New(150, 150).WithCategories(taxonomy.DefaultCategories())
}

func TestNormalizeImage(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"small.png", "large.jpg", "wide.png"} {
		var height, width int
		switch name {
		case "small.png":
			height, width = 100, 100
		case "large.jpg":
			height, width = 200, 300
		case "wide.png":
			height, width = 150, 151
		}
		filePath := filepath.Join(dir, name)
		writeImage(t, filePath, height, width, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

		rewritten, err := NormalizeImage(filePath, 150, 150)
		require.NoError(t, err)
		assert.True(t, rewritten, name)
		gotHeight, gotWidth := imageSize(t, filePath)
		assert.Equal(t, 150, gotHeight, name)
		assert.Equal(t, 150, gotWidth, name)

		// Second time is a no-op.
		before := readFile(t, filePath)
		rewritten, err = NormalizeImage(filePath, 150, 150)
		require.NoError(t, err)
		assert.False(t, rewritten, name)
		assert.Equal(t, before, readFile(t, filePath), name)
	}

	// Height and width are not swapped.
	filePath := filepath.Join(dir, "segmentation.png")
	writeImage(t, filePath, 100, 100, color.Black)
	_, err := NormalizeImage(filePath, 360, 480)
	require.NoError(t, err)
	height, width := imageSize(t, filePath)
	assert.Equal(t, 360, height)
	assert.Equal(t, 480, width)

	// Not an image.
	filePath = filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(filePath, []byte("not an image"), 0644))
	_, err = NormalizeImage(filePath, 150, 150)
	require.Error(t, err)
	assert.True(t, IsIOFailure(err))
}

func TestClassificationEndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	imgPath := filepath.Join(dataDir, "seg_train", "forest", "001.jpg")
	writeImage(t, imgPath, 100, 100, color.NRGBA{R: 20, G: 160, B: 40, A: 255})
	sinkPath := filepath.Join(dataDir, "tfrecords", "train", "train.tfrecords")

	report, err := classificationBuilder().BuildClassification(filepath.Join(dataDir, "seg_train"), sinkPath)
	require.NoError(t, err)

	height, width := imageSize(t, imgPath)
	assert.Equal(t, 150, height)
	assert.Equal(t, 150, width)

	examples := readExamples(t, sinkPath, tfrecord.None)
	require.Len(t, examples, 1)
	assert.Equal(t, []string{ImageKey, LabelKey}, examples[0].Keys())
	label, err := examples[0].Int64(LabelKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), label)
	raw, err := examples[0].Bytes(ImageKey)
	require.NoError(t, err)
	assert.Equal(t, readFile(t, imgPath), raw)

	assert.Equal(t, 1, report.NumRecords)
	assert.Equal(t, []string{imgPath}, report.Rewritten)
	assert.Equal(t, map[string]int{"forest": 1}, report.Labels)
	assert.Equal(t, "classification", report.Kind)
	assert.Positive(t, report.BytesWritten)
}

func TestClassificationOrderAndDeterminism(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := filepath.Join(dataDir, "train")
	// Created out of order on purpose.
	layout := []struct {
		dir, name string
		height    int
	}{
		{"Street", "b.png", 150},
		{"Street", "a.png", 120},
		{"buildings", "z.png", 150},
		{"GLACIER_photos", "m.png", 80},
	}
	for ii, entry := range layout {
		writeImage(t, filepath.Join(rootDir, entry.dir, entry.name), entry.height, 150,
			color.NRGBA{R: uint8(40 * ii), G: 100, B: 200, A: 255})
	}

	firstSink := filepath.Join(dataDir, "first.tfrecords")
	report, err := classificationBuilder().BuildClassification(rootDir, firstSink)
	require.NoError(t, err)
	assert.Len(t, report.Rewritten, 2)

	wantOrder := []struct {
		path  string
		label int64
	}{
		{filepath.Join(rootDir, "GLACIER_photos", "m.png"), 2},
		{filepath.Join(rootDir, "Street", "a.png"), 5},
		{filepath.Join(rootDir, "Street", "b.png"), 5},
		{filepath.Join(rootDir, "buildings", "z.png"), 0},
	}
	examples := readExamples(t, firstSink, tfrecord.None)
	require.Len(t, examples, len(wantOrder))
	for ii, want := range wantOrder {
		label, err := examples[ii].Int64(LabelKey)
		require.NoError(t, err)
		assert.Equal(t, want.label, label, "record #%d", ii)
		raw, err := examples[ii].Bytes(ImageKey)
		require.NoError(t, err)
		assert.Equal(t, readFile(t, want.path), raw, "record #%d", ii)
	}

	// Second build: nothing is rewritten, and the output is byte-identical.
	secondSink := filepath.Join(dataDir, "second.tfrecords")
	report, err = classificationBuilder().BuildClassification(rootDir, secondSink)
	require.NoError(t, err)
	assert.Empty(t, report.Rewritten)
	assert.Equal(t, readFile(t, firstSink), readFile(t, secondSink))
}

func TestClassificationUnknownCategory(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := filepath.Join(dataDir, "train")
	writeImage(t, filepath.Join(rootDir, "buildings", "a.png"), 150, 150, color.White)
	writeImage(t, filepath.Join(rootDir, "cats", "a.png"), 150, 150, color.White)
	sinkPath := filepath.Join(dataDir, "out", "train.tfrecords")

	report, err := classificationBuilder().BuildClassification(rootDir, sinkPath)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, taxonomy.ErrUnknownCategory), "got %v", err)

	// The partially written file is left behind, with the records written before the failure.
	examples := readExamples(t, sinkPath, tfrecord.None)
	assert.Len(t, examples, 1)

	// Ambiguous directory names fail the same way.
	require.NoError(t, os.RemoveAll(filepath.Join(rootDir, "cats")))
	writeImage(t, filepath.Join(rootDir, "sea_forest", "a.png"), 150, 150, color.White)
	_, err = classificationBuilder().BuildClassification(rootDir, sinkPath)
	assert.True(t, errors.Is(err, taxonomy.ErrUnknownCategory), "got %v", err)
}

func TestClassificationProgressBar(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := filepath.Join(dataDir, "train")
	writeImage(t, filepath.Join(rootDir, "buildings", "a.png"), 150, 150, color.White)
	sinkPath := filepath.Join(dataDir, "out", "train.tfrecords")
	const clearLine = "\033[2K\r"

	// Successful builds leave the completed bar.
	var out bytes.Buffer
	b := classificationBuilder().WithProgressBar(true)
	b.progressWriter = &out
	_, err := b.BuildClassification(rootDir, sinkPath)
	require.NoError(t, err)
	assert.NotEmpty(t, out.String())
	assert.False(t, strings.HasSuffix(out.String(), clearLine), "got %q", out.String())

	// Failed builds erase the half-drawn bar.
	writeImage(t, filepath.Join(rootDir, "cats", "a.png"), 150, 150, color.White)
	out.Reset()
	_, err = b.BuildClassification(rootDir, sinkPath)
	require.Error(t, err)
	assert.True(t, strings.HasSuffix(out.String(), clearLine), "got %q", out.String())
}

func TestClassificationAtomicWrite(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := filepath.Join(dataDir, "train")
	writeImage(t, filepath.Join(rootDir, "buildings", "a.png"), 150, 150, color.White)
	writeImage(t, filepath.Join(rootDir, "cats", "a.png"), 150, 150, color.White)
	outDir := filepath.Join(dataDir, "out")
	sinkPath := filepath.Join(outDir, "train.tfrecords")

	_, err := classificationBuilder().WithAtomicWrite(true).BuildClassification(rootDir, sinkPath)
	require.Error(t, err)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file should be left behind")

	require.NoError(t, os.RemoveAll(filepath.Join(rootDir, "cats")))
	report, err := classificationBuilder().WithAtomicWrite(true).BuildClassification(rootDir, sinkPath)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NumRecords)
	assert.Len(t, readExamples(t, sinkPath, tfrecord.None), 1)
	entries, err = os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClassificationIOFailure(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := filepath.Join(dataDir, "train")
	writeImage(t, filepath.Join(rootDir, "forest", "a.png"), 150, 150, color.White)
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "forest", "b.png"), []byte("garbage"), 0644))
	writeImage(t, filepath.Join(rootDir, "forest", "c.png"), 150, 150, color.White)

	_, err := classificationBuilder().BuildClassification(rootDir, filepath.Join(dataDir, "train.tfrecords"))
	require.Error(t, err)
	var failure *IOFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, filepath.Join(rootDir, "forest", "b.png"), failure.Path)

	_, err = classificationBuilder().BuildClassification(filepath.Join(dataDir, "missing"),
		filepath.Join(dataDir, "x.tfrecords"))
	assert.True(t, IsIOFailure(err))

	_, err = New(150, 150).BuildClassification(rootDir, filepath.Join(dataDir, "y.tfrecords"))
	require.Error(t, err, "categories are required")
}

func TestClassificationGzipAndManifest(t *testing.T) {
	dataDir := t.TempDir()
	rootDir := filepath.Join(dataDir, "train")
	writeImage(t, filepath.Join(rootDir, "mountain", "a.png"), 150, 150, color.White)
	writeImage(t, filepath.Join(rootDir, "sea", "a.png"), 10, 10, color.White)
	sinkPath := filepath.Join(dataDir, "train.tfrecords.gz")

	report, err := classificationBuilder().WithCompression(tfrecord.Gzip).BuildClassification(rootDir, sinkPath)
	require.NoError(t, err)
	examples := readExamples(t, sinkPath, tfrecord.Gzip)
	require.Len(t, examples, 2)

	manifestPath := filepath.Join(dataDir, "manifests", "train.yaml")
	require.NoError(t, report.WriteManifest(manifestPath))
	manifest, err := ReadManifest(manifestPath)
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.RunID)
	assert.Equal(t, "gzip", manifest.Compression)
	assert.Equal(t, 2, manifest.NumRecords)
	assert.Equal(t, map[string]int{"mountain": 1, "sea": 1}, manifest.Labels)
	assert.Equal(t, []string{filepath.Join(rootDir, "sea", "a.png")}, manifest.Rewritten)
	assert.Equal(t, 150, manifest.Height)
}
