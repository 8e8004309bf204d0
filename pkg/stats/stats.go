// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stats computes per-feature statistics over TFRecord files of tf.train.Example records, and
// validates them against an expected schema.
package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomlx/imagerecords/pkg/support/sets"
	"github.com/gomlx/imagerecords/pkg/support/xslices"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/pkg/errors"
)

// ErrAnomalies is wrapped by the error returned by Stats.Validate.
var ErrAnomalies = errors.New("examples don't match schema")

// FeatureStats holds the statistics of one feature key.
type FeatureStats struct {
	Key string

	// Kind of the first occurrence of the feature. KindMismatches counts the records where the feature had
	// a different kind.
	Kind           tfexample.Kind
	KindMismatches int

	// Count is the number of records holding the feature, and NumValues the total number of values across
	// those records.
	Count, NumValues int

	// MinBytes, MaxBytes and TotalBytes are the lengths of the values of bytes_list features.
	MinBytes, MaxBytes int
	TotalBytes         int64

	// MinFloat and MaxFloat are the extremes of the values of float_list features.
	MinFloat, MaxFloat float32

	// Histogram counts each value of int64_list features.
	Histogram map[int64]int
}

func newFeatureStats(key string, kind tfexample.Kind) *FeatureStats {
	fs := &FeatureStats{
		Key:      key,
		Kind:     kind,
		MinBytes: math.MaxInt,
		MinFloat: float32(math.Inf(1)),
		MaxFloat: float32(math.Inf(-1)),
	}
	if kind == tfexample.Int64Kind {
		fs.Histogram = make(map[int64]int)
	}
	return fs
}

func (fs *FeatureStats) add(f *tfexample.Feature) {
	fs.Count++
	if f.Kind != fs.Kind {
		fs.KindMismatches++
		return
	}
	fs.NumValues += f.Len()
	switch f.Kind {
	case tfexample.BytesKind:
		for _, value := range f.Bytes {
			fs.MinBytes = min(fs.MinBytes, len(value))
			fs.MaxBytes = max(fs.MaxBytes, len(value))
			fs.TotalBytes += int64(len(value))
		}
	case tfexample.FloatKind:
		for _, value := range f.Floats {
			fs.MinFloat = min(fs.MinFloat, value)
			fs.MaxFloat = max(fs.MaxFloat, value)
		}
	case tfexample.Int64Kind:
		for _, value := range f.Int64s {
			fs.Histogram[value]++
		}
	}
}

// HistogramKeys returns the distinct int64 values seen, sorted.
func (fs *FeatureStats) HistogramKeys() []int64 {
	return sets.FromMapKeys(fs.Histogram).Sorted()
}

// Stats of a set of examples.
type Stats struct {
	NumRecords int
	Features   map[string]*FeatureStats
}

// New returns empty statistics, see Stats.Add.
func New() *Stats {
	return &Stats{Features: make(map[string]*FeatureStats)}
}

// Add the features of one example to the statistics.
func (s *Stats) Add(e *tfexample.Example) {
	s.NumRecords++
	for key, f := range e.Features {
		if f == nil {
			continue
		}
		fs, found := s.Features[key]
		if !found {
			fs = newFeatureStats(key, f.Kind)
			s.Features[key] = fs
		}
		fs.add(f)
	}
}

// Keys returns the feature keys seen, sorted.
func (s *Stats) Keys() []string {
	return sets.FromMapKeys(s.Features).Sorted()
}

// Compute the statistics of all the remaining records of r.
func Compute(r *tfrecord.Reader) (*Stats, error) {
	s := New()
	err := r.ForEach(func(record []byte) error {
		e, err := tfexample.Unmarshal(record)
		if err != nil {
			return errors.WithMessagef(err, "record #%d", s.NumRecords)
		}
		s.Add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ComputeFile computes the statistics of the TFRecord file at filePath.
func ComputeFile(filePath string, compression tfrecord.Compression) (*Stats, error) {
	r, err := tfrecord.Open(filePath, compression)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	s, err := Compute(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "statistics of %q", filePath)
	}
	return s, nil
}

// Anomaly is a difference between the statistics and the expected schema.
type Anomaly struct {
	Key         string
	Description string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%q: %s", a.Key, a.Description)
}

// Anomalies lists the differences between the statistics and schema, which maps every expected feature key
// to its kind. Every expected feature must be present in every record with the expected kind, and no other
// feature may be present. They are sorted by key.
func (s *Stats) Anomalies(schema map[string]tfexample.Kind) []Anomaly {
	var anomalies []Anomaly
	keys := sets.FromMapKeys(schema).Union(sets.FromMapKeys(s.Features))
	for _, key := range keys.Sorted() {
		want, expected := schema[key]
		fs, found := s.Features[key]
		switch {
		case !expected:
			anomalies = append(anomalies, Anomaly{key, fmt.Sprintf("unexpected feature, present in %d of %d records",
				fs.Count, s.NumRecords)})
		case !found:
			if s.NumRecords > 0 {
				anomalies = append(anomalies, Anomaly{key, "missing in all records"})
			}
		default:
			if fs.Count < s.NumRecords {
				anomalies = append(anomalies, Anomaly{key, fmt.Sprintf("missing in %d of %d records",
					s.NumRecords-fs.Count, s.NumRecords)})
			}
			if fs.Kind != want {
				anomalies = append(anomalies, Anomaly{key, fmt.Sprintf("expected %s, got %s", want, fs.Kind)})
			}
			if fs.KindMismatches > 0 {
				anomalies = append(anomalies, Anomaly{key, fmt.Sprintf("kind differs from %s in %d records",
					fs.Kind, fs.KindMismatches)})
			}
		}
	}
	return anomalies
}

// Validate returns nil if there are no Anomalies, or an error wrapping ErrAnomalies listing all of them.
func (s *Stats) Validate(schema map[string]tfexample.Kind) error {
	anomalies := s.Anomalies(schema)
	if len(anomalies) == 0 {
		return nil
	}
	parts := xslices.Map(anomalies, Anomaly.String)
	return errors.Wrapf(ErrAnomalies, "%d anomalies: %s", len(anomalies), strings.Join(parts, "; "))
}
