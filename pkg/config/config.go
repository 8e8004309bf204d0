// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config holds the configuration of the dataset builds: where the images are, where the TFRecord
// files go, the target image sizes and the taxonomies.
//
// Default returns the standard layout, and Load overlays a YAML file over it:
//
//	data_dir: ~/work/scenes
//	compression: gzip
//	segmentation:
//	  transform:
//	    model_classes: [sky, building, road]
//
// Lists (splits, classes) given in the YAML file replace the defaults as a whole.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/imagerecords/pkg/support/fsutil"
	"github.com/gomlx/imagerecords/pkg/support/xslices"
	"github.com/gomlx/imagerecords/pkg/taxonomy"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by all validation errors.
var ErrInvalid = errors.New("invalid configuration")

// Config of the dataset builds. Once loaded it is not modified, and it is passed explicitly to whoever
// needs it.
type Config struct {
	// DataDir is the base directory of all relative paths. A leading "~" is replaced by the home directory.
	DataDir string `yaml:"data_dir"`

	// Compression of the TFRecord files: "none" or "gzip".
	Compression tfrecord.Compression `yaml:"compression"`

	Classification Classification `yaml:"classification"`
	Segmentation   Segmentation   `yaml:"segmentation"`
}

// Split is one set of images (e.g. "train" or "test") and the TFRecord file built from it.
type Split struct {
	Name      string `yaml:"name"`
	ImagesDir string `yaml:"images_dir"`

	// MasksDir is only used for segmentation.
	MasksDir string `yaml:"masks_dir,omitempty"`

	RecordFile string `yaml:"record_file"`

	// TransformedFile is where the transformed records are written. If empty, it is derived from
	// RecordFile, see TransformedPath.
	TransformedFile string `yaml:"transformed_file,omitempty"`
}

// TransformedPath returns TransformedFile, or if it is empty, RecordFile with "_xf" added before the
// ".tfrecords" extension.
func (s Split) TransformedPath() string {
	if s.TransformedFile != "" {
		return s.TransformedFile
	}
	for _, ext := range []string{".tfrecords.gz", ".tfrecords"} {
		if base, found := strings.CutSuffix(s.RecordFile, ext); found {
			return base + "_xf" + ext
		}
	}
	return s.RecordFile + "_xf"
}

// Classification dataset configuration.
type Classification struct {
	Height int `yaml:"height"`
	Width  int `yaml:"width"`

	// Categories are the ordered category names: the label is the index in this list.
	Categories []string `yaml:"categories"`

	Splits []Split `yaml:"splits"`
}

// Segmentation dataset configuration.
type Segmentation struct {
	Height int     `yaml:"height"`
	Width  int     `yaml:"width"`
	Splits []Split `yaml:"splits"`

	Transform Transform `yaml:"transform"`
}

// Transform configures the conversion of segmentation records into model inputs.
type Transform struct {
	Height       int      `yaml:"height"`
	Width        int      `yaml:"width"`
	TotalClasses []string `yaml:"total_classes"`
	ModelClasses []string `yaml:"model_classes"`
}

// Default returns the standard configuration: images under "data/", with the classification images
// normalized to 150x150 and the segmentation images to 360x480 (height x width).
func Default() *Config {
	return &Config{
		DataDir:     "data",
		Compression: tfrecord.None,
		Classification: Classification{
			Height:     150,
			Width:      150,
			Categories: append([]string(nil), taxonomy.DefaultCategoryNames...),
			Splits: []Split{{
				Name:       "train",
				ImagesDir:  "Image_Classification/seg_train",
				RecordFile: "tfrecords/train/train.tfrecords",
			}},
		},
		Segmentation: Segmentation{
			Height: 360,
			Width:  480,
			Splits: []Split{
				{
					Name:       "train",
					ImagesDir:  "images_prepped_train",
					MasksDir:   "annotations_prepped_train",
					RecordFile: "tfrecords/train/train.tfrecords",
				},
				{
					Name:       "test",
					ImagesDir:  "images_prepped_test",
					MasksDir:   "annotations_prepped_test",
					RecordFile: "tfrecords/test/test.tfrecords",
				},
			},
			Transform: Transform{
				Height:       320,
				Width:        320,
				TotalClasses: append([]string(nil), taxonomy.DefaultTotalClasses...),
				ModelClasses: append([]string(nil), taxonomy.DefaultModelClasses...),
			},
		},
	}
}

// Load reads the YAML file at filePath over the Default configuration, and validates the result.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration %q", filePath)
	}
	c := Default()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration %q", filePath)
	}
	if err = c.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "configuration %q", filePath)
	}
	return c, nil
}

// Validate checks that sizes are positive, that the taxonomies are valid and that every split is complete,
// with a unique name.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.Wrap(ErrInvalid, "data_dir is empty")
	}
	checkSize := func(section string, height, width int) error {
		if height <= 0 || width <= 0 {
			return errors.Wrapf(ErrInvalid, "%s: invalid image size %dx%d (height x width)", section, height, width)
		}
		return nil
	}
	if err := checkSize("classification", c.Classification.Height, c.Classification.Width); err != nil {
		return err
	}
	if err := checkSize("segmentation", c.Segmentation.Height, c.Segmentation.Width); err != nil {
		return err
	}
	if err := checkSize("segmentation.transform", c.Segmentation.Transform.Height, c.Segmentation.Transform.Width); err != nil {
		return err
	}
	if _, err := c.Categories(); err != nil {
		return errors.Wrapf(ErrInvalid, "classification.categories: %v", err)
	}
	if _, err := c.Taxonomy(); err != nil {
		return errors.Wrapf(ErrInvalid, "segmentation.transform: %v", err)
	}
	if err := validateSplits("classification", c.Classification.Splits, false); err != nil {
		return err
	}
	return validateSplits("segmentation", c.Segmentation.Splits, true)
}

func validateSplits(section string, splits []Split, withMasks bool) error {
	seen := make(map[string]bool, len(splits))
	for ii, split := range splits {
		switch {
		case split.Name == "":
			return errors.Wrapf(ErrInvalid, "%s.splits[%d]: name is empty", section, ii)
		case seen[split.Name]:
			return errors.Wrapf(ErrInvalid, "%s.splits[%d]: duplicate split %q", section, ii, split.Name)
		case split.ImagesDir == "":
			return errors.Wrapf(ErrInvalid, "%s split %q: images_dir is empty", section, split.Name)
		case withMasks && split.MasksDir == "":
			return errors.Wrapf(ErrInvalid, "%s split %q: masks_dir is empty", section, split.Name)
		case split.RecordFile == "":
			return errors.Wrapf(ErrInvalid, "%s split %q: record_file is empty", section, split.Name)
		}
		seen[split.Name] = true
	}
	return nil
}

// ResolvePath returns filePath if it is absolute, otherwise filePath under DataDir. A leading "~" in
// either is replaced by the home directory.
func (c *Config) ResolvePath(filePath string) (string, error) {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(filePath) {
		return filePath, nil
	}
	dataDir, err := fsutil.ReplaceTildeInDir(c.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, filePath), nil
}

// Categories returns the classification categories.
func (c *Config) Categories() (*taxonomy.Categories, error) {
	return taxonomy.NewCategories(c.Classification.Categories...)
}

// Taxonomy returns the segmentation class taxonomy.
func (c *Config) Taxonomy() (*taxonomy.Segmentation, error) {
	return taxonomy.NewSegmentation(c.Segmentation.Transform.TotalClasses, c.Segmentation.Transform.ModelClasses)
}

// FindSplit returns the split with the given name.
func FindSplit(splits []Split, name string) (Split, error) {
	for _, split := range splits {
		if split.Name == name {
			return split, nil
		}
	}
	names := xslices.Map(splits, func(split Split) string { return split.Name })
	return Split{}, errors.Errorf("unknown split %q, configured splits are %q", name, names)
}
