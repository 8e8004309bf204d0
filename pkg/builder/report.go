// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"os"
	"time"

	"github.com/gomlx/imagerecords/pkg/support/fsutil"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Report summarizes a successful build.
type Report struct {
	// Kind is either "classification" or "segmentation".
	Kind string

	RecordFile  string
	Compression tfrecord.Compression
	NumRecords  int

	// BytesWritten is the number of bytes of framed records, before compression.
	BytesWritten int64

	// Height and Width of the normalized images.
	Height, Width int

	// Rewritten lists the files resized in place, in the order they were visited.
	Rewritten []string

	// Labels counts the records per category name. Only set for classification.
	Labels map[string]int

	Duration time.Duration
	started  time.Time
}

func (r *Report) done(w *tfrecord.Writer) {
	r.NumRecords = w.NumRecords()
	r.BytesWritten = w.BytesWritten()
	r.Duration = time.Since(r.started)
}

// Manifest is the YAML document written next to a TFRecord file by Report.WriteManifest.
type Manifest struct {
	RunID        string         `yaml:"run_id"`
	CreatedAt    time.Time      `yaml:"created_at"`
	Kind         string         `yaml:"kind"`
	RecordFile   string         `yaml:"record_file"`
	Compression  string         `yaml:"compression"`
	NumRecords   int            `yaml:"num_records"`
	BytesWritten int64          `yaml:"bytes_written"`
	Height       int            `yaml:"height"`
	Width        int            `yaml:"width"`
	Rewritten    []string       `yaml:"rewritten,omitempty"`
	Labels       map[string]int `yaml:"labels,omitempty"`
}

// Manifest returns the manifest of the build, with a new random run id.
func (r *Report) Manifest() *Manifest {
	return &Manifest{
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Kind:         r.Kind,
		RecordFile:   r.RecordFile,
		Compression:  r.Compression.String(),
		NumRecords:   r.NumRecords,
		BytesWritten: r.BytesWritten,
		Height:       r.Height,
		Width:        r.Width,
		Rewritten:    r.Rewritten,
		Labels:       r.Labels,
	}
}

// WriteManifest writes the YAML manifest of the build to filePath.
func (r *Report) WriteManifest(filePath string) error {
	data, err := yaml.Marshal(r.Manifest())
	if err != nil {
		return errors.Wrap(err, "failed to serialize manifest")
	}
	if err = fsutil.EnsureParentDir(filePath); err != nil {
		return err
	}
	if err = os.WriteFile(filePath, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write manifest %q", filePath)
	}
	return nil
}

// ReadManifest reads a manifest written by Report.WriteManifest.
func ReadManifest(filePath string) (*Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %q", filePath)
	}
	m := &Manifest{}
	if err = yaml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %q", filePath)
	}
	return m, nil
}
