// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transform converts the raw records written by package builder into the dense float features the
// training pipelines consume: images are decoded, resized and (for segmentation) standardized, and masks are
// reduced to one plane per model class (see MaskReducer).
//
// Transformed features are stored under the original key with the "_xf" suffix, see TransformedName.
package transform

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/imagerecords/pkg/builder"
	"github.com/gomlx/imagerecords/pkg/support/sets"
	"github.com/gomlx/imagerecords/pkg/taxonomy"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/gomlx/imagerecords/pkg/tfrecord"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrUnexpectedFeature is returned by CheckInput for features that are not part of the InputSchema.
var ErrUnexpectedFeature = errors.New("unexpected feature")

// TransformedName returns the key of the transformed version of the feature key.
func TransformedName(key string) string {
	return key + "_xf"
}

// Transformer converts examples of one kind (classification or segmentation). It is safe for concurrent use.
type Transformer struct {
	height, width int

	// reducer is only set for segmentation.
	reducer *MaskReducer
}

// NewClassificationTransformer returns a Transformer for classification examples ({label, image_raw}).
//
// The image is resized to height x width and stored as float RGB values in [0, 255] under "image_raw_xf".
// The label is copied unchanged to "label_xf".
func NewClassificationTransformer(height, width int) *Transformer {
	return &Transformer{height: height, width: width}
}

// NewSegmentationTransformer returns a Transformer for segmentation examples ({image_raw, mask_raw}).
//
// The image is resized to height x width and standardized (see StandardizeImage) under "image_raw_xf". The
// mask is reduced to the model classes of seg (see MaskReducer) under "mask_raw_xf".
func NewSegmentationTransformer(seg *taxonomy.Segmentation, height, width int) *Transformer {
	return &Transformer{height: height, width: width, reducer: NewMaskReducer(seg, height, width)}
}

// IsSegmentation returns whether the Transformer handles segmentation examples.
func (t *Transformer) IsSegmentation() bool { return t.reducer != nil }

// InputSchema is the schema of the examples accepted by Transform.
func (t *Transformer) InputSchema() map[string]tfexample.Kind {
	if t.IsSegmentation() {
		return builder.SegmentationSchema
	}
	return builder.ClassificationSchema
}

// OutputSchema is the schema of the examples returned by Transform.
func (t *Transformer) OutputSchema() map[string]tfexample.Kind {
	if t.IsSegmentation() {
		return map[string]tfexample.Kind{
			TransformedName(builder.ImageKey): tfexample.FloatKind,
			TransformedName(builder.MaskKey):  tfexample.FloatKind,
		}
	}
	return map[string]tfexample.Kind{
		TransformedName(builder.ImageKey): tfexample.FloatKind,
		TransformedName(builder.LabelKey): tfexample.Int64Kind,
	}
}

// CheckInput returns an error if e doesn't hold exactly the features of InputSchema: it wraps
// tfexample.ErrMissingFeature, tfexample.ErrWrongKind or ErrUnexpectedFeature.
func (t *Transformer) CheckInput(e *tfexample.Example) error {
	schema := t.InputSchema()
	for _, key := range sets.FromMapKeys(schema).Sorted() {
		f, found := e.Features[key]
		if !found || f == nil {
			return errors.Wrapf(tfexample.ErrMissingFeature, "feature %q", key)
		}
		if f.Kind != schema[key] {
			return errors.Wrapf(tfexample.ErrWrongKind, "feature %q is a %s, wanted %s", key, f.Kind, schema[key])
		}
	}
	for _, key := range e.Keys() {
		if _, found := schema[key]; !found {
			return errors.Wrapf(ErrUnexpectedFeature, "feature %q", key)
		}
	}
	return nil
}

// Transform returns the transformed version of e. The input is not modified.
func (t *Transformer) Transform(e *tfexample.Example) (*tfexample.Example, error) {
	raw, err := e.Bytes(builder.ImageKey)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q", builder.ImageKey)
	}
	out := tfexample.New()
	if !t.IsSegmentation() {
		label, err := e.Int64(builder.LabelKey)
		if err != nil {
			return nil, err
		}
		var p *Planes
		err = exceptions.TryCatch[error](func() { p = ImageToPlanes(img, t.height, t.width) })
		if err != nil {
			return nil, err
		}
		return out.
			Set(TransformedName(builder.ImageKey), tfexample.FloatFeature(p.Data...)).
			Set(TransformedName(builder.LabelKey), tfexample.Int64Feature(label)), nil
	}

	rawMask, err := e.Bytes(builder.MaskKey)
	if err != nil {
		return nil, err
	}
	var imgPlanes, maskPlanes *Planes
	var maskErr error
	err = exceptions.TryCatch[error](func() {
		imgPlanes = StandardizeImage(img, t.height, t.width)
		maskPlanes, maskErr = t.reducer.ReduceEncoded(rawMask)
	})
	if err != nil {
		return nil, err
	}
	if maskErr != nil {
		return nil, errors.WithMessagef(maskErr, "feature %q", builder.MaskKey)
	}
	return out.
		Set(TransformedName(builder.ImageKey), tfexample.FloatFeature(imgPlanes.Data...)).
		Set(TransformedName(builder.MaskKey), tfexample.FloatFeature(maskPlanes.Data...)), nil
}

// transformLogEvery is the frequency, in records, of the progress log lines of TransformFile.
const transformLogEvery = 500

// TransformFile transforms every record of the TFRecord file inPath into the TFRecord file outPath (parent
// directories are created as needed), preserving their order. It returns the number of records written.
//
// Records are checked with CheckInput before being transformed. It stops at the first record that fails,
// and the partially written outPath is left behind.
func (t *Transformer) TransformFile(inPath, outPath string, inCompression, outCompression tfrecord.Compression) (
	numRecords int, err error) {
	r, err := tfrecord.Open(inPath, inCompression)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()
	w, err := tfrecord.Create(outPath, outCompression)
	if err != nil {
		return 0, err
	}
	defer func() {
		closeErr := w.Close()
		if err == nil && closeErr != nil {
			err = errors.WithMessagef(closeErr, "failed to close %q", outPath)
		}
		numRecords = w.NumRecords()
	}()

	err = r.ForEach(func(record []byte) error {
		recordNum := w.NumRecords()
		if recordNum%transformLogEvery == 0 {
			klog.V(1).Infof("Transforming record #%d of %q", recordNum, inPath)
		}
		e, err := tfexample.Unmarshal(record)
		if err != nil {
			return errors.WithMessagef(err, "record #%d of %q", recordNum, inPath)
		}
		if err = t.CheckInput(e); err != nil {
			return errors.WithMessagef(err, "record #%d of %q doesn't match the input schema", recordNum, inPath)
		}
		transformed, err := t.Transform(e)
		if err != nil {
			return errors.WithMessagef(err, "failed to transform record #%d of %q", recordNum, inPath)
		}
		data, err := transformed.Marshal()
		if err != nil {
			return err
		}
		return w.Write(data)
	})
	if err == nil {
		klog.Infof("Transformed %d records from %q to %q", w.NumRecords(), inPath, outPath)
	}
	return
}
