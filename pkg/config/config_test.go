// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "imagerecords.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 150, c.Classification.Height)
	assert.Equal(t, 150, c.Classification.Width)
	assert.Equal(t, 360, c.Segmentation.Height)
	assert.Equal(t, 480, c.Segmentation.Width)
	assert.Equal(t, 320, c.Segmentation.Transform.Height)
	assert.Equal(t, tfrecord.None, c.Compression)

	categories, err := c.Categories()
	require.NoError(t, err)
	assert.Equal(t, 6, categories.Len())
	seg, err := c.Taxonomy()
	require.NoError(t, err)
	assert.Equal(t, 3, seg.NumModelClasses())

	train, err := FindSplit(c.Segmentation.Splits, "train")
	require.NoError(t, err)
	assert.Equal(t, "annotations_prepped_train", train.MasksDir)
	assert.Equal(t, "tfrecords/train/train_xf.tfrecords", train.TransformedPath())
	_, err = FindSplit(c.Classification.Splits, "test")
	require.Error(t, err)

	// Defaults are not shared between calls.
	c.Classification.Categories[0] = "changed"
	assert.Equal(t, "buildings", Default().Classification.Categories[0])
}

func TestLoad(t *testing.T) {
	filePath := writeConfig(t, `
data_dir: /datasets/scenes
compression: GZIP
classification:
  height: 224
segmentation:
  splits:
    - name: val
      images_dir: images_val
      masks_dir: masks_val
      record_file: /records/val.tfrecords.gz
  transform:
    model_classes: [Sky, road, car]
`)
	c, err := Load(filePath)
	require.NoError(t, err)
	assert.Equal(t, "/datasets/scenes", c.DataDir)
	assert.Equal(t, tfrecord.Gzip, c.Compression)
	assert.Equal(t, 224, c.Classification.Height)
	assert.Equal(t, 150, c.Classification.Width, "defaults are kept")
	require.Len(t, c.Classification.Splits, 1)
	require.Len(t, c.Segmentation.Splits, 1, "lists replace the defaults")
	assert.Equal(t, 480, c.Segmentation.Width)

	seg, err := c.Taxonomy()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 8}, seg.ClassValues())

	split := c.Segmentation.Splits[0]
	assert.Equal(t, "/records/val_xf.tfrecords.gz", split.TransformedPath())
	imagesDir, err := c.ResolvePath(split.ImagesDir)
	require.NoError(t, err)
	assert.Equal(t, "/datasets/scenes/images_val", imagesDir)
	recordFile, err := c.ResolvePath(split.RecordFile)
	require.NoError(t, err)
	assert.Equal(t, "/records/val.tfrecords.gz", recordFile)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "compression: zstd\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "data_dir: [\n"))
	require.Error(t, err)

	for _, content := range []string{
		"segmentation: {height: 0}",
		"classification: {categories: [sea, sea]}",
		"segmentation: {transform: {model_classes: [sky, lake]}}",
		"segmentation: {splits: [{name: train, images_dir: a, record_file: b}]}",
		"classification: {splits: [{name: a, images_dir: x, record_file: y}, {name: a, images_dir: x, record_file: y}]}",
		"classification: {splits: [{name: a, images_dir: x}]}",
	} {
		_, err = Load(writeConfig(t, content))
		require.Error(t, err, content)
		assert.True(t, errors.Is(err, ErrInvalid), "%q: got %v", content, err)
	}
}

func TestTransformedPath(t *testing.T) {
	assert.Equal(t, "out/x.tfrecords", Split{RecordFile: "a.tfrecords", TransformedFile: "out/x.tfrecords"}.TransformedPath())
	assert.Equal(t, "a.rec_xf", Split{RecordFile: "a.rec"}.TransformedPath())
}

func TestResolvePathTilde(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)
	home := usr.HomeDir
	c := &Config{DataDir: "~/data"}
	resolved, err := c.ResolvePath("tfrecords/train.tfrecords")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "tfrecords", "train.tfrecords"), resolved)
}
