// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transform

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gomlx/imagerecords/pkg/taxonomy"
	"github.com/pkg/errors"
)

// MaskReducer converts segmentation masks, where each pixel holds a class index, into the class planes the
// segmentation model is trained on.
//
// It is a pure function of the mask and of its configuration, and it is safe for concurrent use.
type MaskReducer struct {
	seg           *taxonomy.Segmentation
	height, width int
}

// NewMaskReducer creates a MaskReducer producing planes of height x width pixels.
func NewMaskReducer(seg *taxonomy.Segmentation, height, width int) *MaskReducer {
	return &MaskReducer{seg: seg, height: height, width: width}
}

// NumChannels is the number of output planes: seg.NumModelClasses().
func (r *MaskReducer) NumChannels() int {
	return r.seg.NumModelClasses()
}

// Reduce converts a decoded mask:
//
//  1. The mask is resized to height x width, with linear interpolation.
//  2. The class index of each pixel is the maximum of its R, G and B channels.
//  3. Indices are expanded to one indicator plane per total class (see OneHot).
//  4. Unless all classes are modeled, the planes are regrouped into the model classes, in their configured
//     order, followed by the background plane (see GroupChannels).
//
// The result is shaped `[height, width, NumChannels()]`.
//
// Resizing rounds the interpolated values to 8 bits, so pixels on class borders may take the higher of the
// neighboring class indices where a float interpolation followed by truncation would take the lower one.
func (r *MaskReducer) Reduce(mask image.Image) *Planes {
	resized := resize(mask, r.height, r.width)
	indices := ClassIndices(resized)
	oneHot := OneHot(indices, r.height, r.width, r.seg.NumTotalClasses())
	if r.seg.AllClasses() {
		return oneHot
	}
	return GroupChannels(oneHot, r.seg.ClassValues())
}

// ReduceEncoded decodes an encoded mask (PNG, JPEG, ...) and reduces it with Reduce.
func (r *MaskReducer) ReduceEncoded(data []byte) (*Planes, error) {
	mask, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode mask")
	}
	return r.Reduce(mask), nil
}
