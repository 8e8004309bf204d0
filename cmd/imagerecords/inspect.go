// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/imagerecords/pkg/builder"
	"github.com/gomlx/imagerecords/pkg/stats"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/gomlx/imagerecords/pkg/transform"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
)

// maxHistogramValues is the number of distinct int64 values displayed per feature.
const maxHistogramValues = 10

// schemas known by the inspect command.
var schemas = map[string]map[string]tfexample.Kind{
	"classification":    builder.ClassificationSchema,
	"segmentation":      builder.SegmentationSchema,
	"classification_xf": transform.NewClassificationTransformer(1, 1).OutputSchema(),
	"segmentation_xf":   transform.NewSegmentationTransformer(nil, 1, 1).OutputSchema(),
}

func runInspect(args []string) {
	fs := newFlagSet("inspect")
	compressionName := fs.String("compression", "", `Compression of the files, "none" or "gzip". `+
		`If empty, files ending in ".gz" are read as gzip.`)
	schemaName := fs.String("schema", "", `Schema to validate the files against: "classification", `+
		`"segmentation", "classification_xf" or "segmentation_xf". If empty, files are not validated.`)
	must.M(fs.Parse(args))
	if fs.NArg() == 0 {
		must.M(errors.New("missing TFRecord files to inspect, see 'imagerecords inspect -help'"))
	}
	var schema map[string]tfexample.Kind
	if *schemaName != "" {
		var found bool
		schema, found = schemas[*schemaName]
		if !found {
			must.M(errors.Errorf("unknown -schema=%q", *schemaName))
		}
	}

	var failed []string
	for _, filePath := range fs.Args() {
		compression := compressionFor(filePath, *compressionName)
		s := must.M1(stats.ComputeFile(filePath, compression))
		info := must.M1(os.Stat(filePath))
		var anomalies []stats.Anomaly
		if schema != nil {
			anomalies = s.Anomalies(schema)
			if len(anomalies) > 0 {
				failed = append(failed, filePath)
			}
		}
		printStats(filePath, uint64(info.Size()), compression, s, anomalies)
	}
	if len(failed) > 0 {
		must.M(errors.Wrapf(stats.ErrAnomalies, "schema %q failed for %q", *schemaName, failed))
	}
}

// compressionFor returns the compression given by name, or if name is empty, the one implied by the file
// extension.
func compressionFor(filePath, name string) tfrecord.Compression {
	if name != "" {
		return must.M1(tfrecord.ParseCompression(name))
	}
	if strings.HasSuffix(filePath, ".gz") {
		return tfrecord.Gzip
	}
	return tfrecord.None
}

func printStats(filePath string, fileSize uint64, compression tfrecord.Compression, s *stats.Stats,
	anomalies []stats.Anomaly) {
	fmt.Println(titleStyle.Render(filePath))
	summary := newTable(lipgloss.Right, lipgloss.Left)
	summary.row(false, "records", humanize.Comma(int64(s.NumRecords)))
	summary.row(false, "file size", humanize.Bytes(fileSize))
	summary.row(false, "compression", compression.String())
	fmt.Println(summary.Render())

	anomalous := make(map[string]bool, len(anomalies))
	for _, a := range anomalies {
		anomalous[a.Key] = true
	}
	features := newTable(lipgloss.Left, lipgloss.Left, lipgloss.Right)
	features.Headers("Feature", "Kind", "Present", "Values", "Details")
	for _, key := range s.Keys() {
		fs := s.Features[key]
		features.row(anomalous[key], key, fs.Kind.String(),
			humanize.Comma(int64(fs.Count)), humanize.Comma(int64(fs.NumValues)), featureDetails(fs))
	}
	fmt.Println(features.Render())

	if len(anomalies) > 0 {
		t := newTable(lipgloss.Left)
		t.Headers("Feature", "Anomaly")
		for _, a := range anomalies {
			t.row(true, a.Key, a.Description)
		}
		fmt.Println(t.Render())
	}
}

// featureDetails summarizes the values of a feature, according to its kind.
func featureDetails(fs *stats.FeatureStats) string {
	if fs.NumValues == 0 {
		return ""
	}
	switch fs.Kind {
	case tfexample.BytesKind:
		return fmt.Sprintf("size %s to %s, total %s",
			humanize.Bytes(uint64(fs.MinBytes)), humanize.Bytes(uint64(fs.MaxBytes)), humanize.Bytes(uint64(fs.TotalBytes)))
	case tfexample.FloatKind:
		return fmt.Sprintf("range [%g, %g]", fs.MinFloat, fs.MaxFloat)
	case tfexample.Int64Kind:
		keys := fs.HistogramKeys()
		parts := make([]string, 0, min(len(keys), maxHistogramValues)+1)
		for ii, value := range keys {
			if ii == maxHistogramValues {
				parts = append(parts, fmt.Sprintf("... (%d more)", len(keys)-maxHistogramValues))
				break
			}
			parts = append(parts, strconv.FormatInt(value, 10)+": "+humanize.Comma(int64(fs.Histogram[value])))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
