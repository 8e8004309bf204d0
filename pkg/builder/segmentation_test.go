// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSegmentationDirs creates images and masks with the given names. Images are 36x48 and masks are 18x24,
// so masks are always rewritten.
func makeSegmentationDirs(t *testing.T, dataDir string, imageNames, maskNames []string) (imagesDir, masksDir string) {
	t.Helper()
	imagesDir = filepath.Join(dataDir, "images_prepped_train")
	masksDir = filepath.Join(dataDir, "annotations_prepped_train")
	for ii, name := range imageNames {
		writeImage(t, filepath.Join(imagesDir, name), 36, 48, color.NRGBA{R: uint8(10 * ii), G: 50, B: 90, A: 255})
	}
	for ii, name := range maskNames {
		class := uint8(ii % 12)
		writeImage(t, filepath.Join(masksDir, name), 18, 24, color.NRGBA{R: class, G: class, B: class, A: 255})
	}
	return
}

func TestBuildSegmentation(t *testing.T) {
	dataDir := t.TempDir()
	names := []string{"0016E5_07959.png", "0001TP_006690.png", "0006R0_f02910.png"}
	imagesDir, masksDir := makeSegmentationDirs(t, dataDir, names, names)
	sinkPath := filepath.Join(dataDir, "tfrecords", "train", "train.tfrecords")

	report, err := New(36, 48).BuildSegmentation(imagesDir, masksDir, sinkPath)
	require.NoError(t, err)
	assert.Equal(t, "segmentation", report.Kind)
	assert.Equal(t, 3, report.NumRecords)
	assert.Len(t, report.Rewritten, 3, "only masks should have been resized")
	assert.Nil(t, report.Labels)

	sortedNames := []string{"0001TP_006690.png", "0006R0_f02910.png", "0016E5_07959.png"}
	examples := readExamples(t, sinkPath, tfrecord.None)
	require.Len(t, examples, len(sortedNames))
	for ii, name := range sortedNames {
		assert.Equal(t, []string{ImageKey, MaskKey}, examples[ii].Keys())
		raw, err := examples[ii].Bytes(ImageKey)
		require.NoError(t, err)
		assert.Equal(t, readFile(t, filepath.Join(imagesDir, name)), raw, "record #%d", ii)
		raw, err = examples[ii].Bytes(MaskKey)
		require.NoError(t, err)
		assert.Equal(t, readFile(t, filepath.Join(masksDir, name)), raw, "record #%d", ii)

		height, width := imageSize(t, filepath.Join(masksDir, name))
		assert.Equal(t, 36, height)
		assert.Equal(t, 48, width)
	}

	// Rebuilding touches nothing and gives the same bytes.
	secondSink := filepath.Join(dataDir, "second.tfrecords")
	report, err = New(36, 48).BuildSegmentation(imagesDir, masksDir, secondSink)
	require.NoError(t, err)
	assert.Empty(t, report.Rewritten)
	assert.Equal(t, readFile(t, sinkPath), readFile(t, secondSink))
}

func TestBuildSegmentationPairing(t *testing.T) {
	t.Run("extra masks are ignored", func(t *testing.T) {
		dataDir := t.TempDir()
		imagesDir, masksDir := makeSegmentationDirs(t, dataDir,
			[]string{"a.png", "b.png"}, []string{"a.png", "b.png", "c.png"})
		sinkPath := filepath.Join(dataDir, "train.tfrecords")
		report, err := New(36, 48).BuildSegmentation(imagesDir, masksDir, sinkPath)
		require.NoError(t, err)
		assert.Equal(t, 2, report.NumRecords)
	})

	t.Run("missing mask", func(t *testing.T) {
		dataDir := t.TempDir()
		imagesDir, masksDir := makeSegmentationDirs(t, dataDir,
			[]string{"a.png", "b.png", "c.png"}, []string{"a.png", "c.png"})
		sinkPath := filepath.Join(dataDir, "train.tfrecords")
		_, err := New(36, 48).BuildSegmentation(imagesDir, masksDir, sinkPath)
		require.Error(t, err)
		var failure *IOFailure
		require.True(t, errors.As(err, &failure), "got %v", err)
		assert.Equal(t, filepath.Join(masksDir, "b.png"), failure.Path)
		// Record for "a.png" was written before the failure.
		assert.Len(t, readExamples(t, sinkPath, tfrecord.None), 1)
	})

	t.Run("validation", func(t *testing.T) {
		dataDir := t.TempDir()
		imagesDir, masksDir := makeSegmentationDirs(t, dataDir,
			[]string{"a.png", "b.png"}, []string{"a.png", "c.png"})
		sinkPath := filepath.Join(dataDir, "train.tfrecords")
		_, err := New(36, 48).WithPairValidation(true).BuildSegmentation(imagesDir, masksDir, sinkPath)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnalignedPairs), "got %v", err)
		assert.Contains(t, err.Error(), "b.png")
		assert.Contains(t, err.Error(), "c.png")
		_, statErr := os.Stat(sinkPath)
		assert.True(t, os.IsNotExist(statErr), "nothing should be written if pairs are not aligned")
		// Validation happens before any normalization.
		height, _ := imageSize(t, filepath.Join(masksDir, "a.png"))
		assert.Equal(t, 18, height)
	})

	t.Run("validation passes", func(t *testing.T) {
		dataDir := t.TempDir()
		names := []string{"a.png", "b.png"}
		imagesDir, masksDir := makeSegmentationDirs(t, dataDir, names, names)
		report, err := New(36, 48).WithPairValidation(true).
			BuildSegmentation(imagesDir, masksDir, filepath.Join(dataDir, "train.tfrecords"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.NumRecords)
	})
}

func TestTruncateNames(t *testing.T) {
	assert.Equal(t, []string{"a"}, truncateNames([]string{"a"}))
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "..."}, truncateNames(names))
	assert.Len(t, names, 7)
}
