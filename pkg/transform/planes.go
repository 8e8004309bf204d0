// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transform

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// Planes is a dense float32 tensor shaped `[height, width, channels]`, stored row-major with the channels
// axis last (HWC), the layout of images in the training pipelines.
type Planes struct {
	Height, Width, Channels int

	// Data holds Height*Width*Channels values, where the value of (y, x, c) is at
	// `(y*Width + x)*Channels + c`.
	Data []float32
}

// NewPlanes returns zero-initialized Planes. It panics if any of the dimensions is not positive.
func NewPlanes(height, width, channels int) *Planes {
	if height <= 0 || width <= 0 || channels <= 0 {
		exceptions.Panicf("invalid planes shape [%d, %d, %d], all dimensions must be > 0", height, width, channels)
	}
	return &Planes{
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]float32, height*width*channels),
	}
}

// Shape returns the dimensions `[height, width, channels]`.
func (p *Planes) Shape() [3]int {
	return [3]int{p.Height, p.Width, p.Channels}
}

// Size is the total number of values.
func (p *Planes) Size() int {
	return p.Height * p.Width * p.Channels
}

func (p *Planes) offset(y, x, c int) int {
	if y < 0 || y >= p.Height || x < 0 || x >= p.Width || c < 0 || c >= p.Channels {
		exceptions.Panicf("position (%d, %d, %d) out of range for planes shaped %v", y, x, c, p.Shape())
	}
	return (y*p.Width+x)*p.Channels + c
}

// At returns the value at row y, column x and channel c.
func (p *Planes) At(y, x, c int) float32 {
	return p.Data[p.offset(y, x, c)]
}

// Set the value at row y, column x and channel c.
func (p *Planes) Set(y, x, c int, value float32) {
	p.Data[p.offset(y, x, c)] = value
}

// Plane returns a copy of channel c, shaped `[height*width]`.
func (p *Planes) Plane(c int) []float32 {
	if c < 0 || c >= p.Channels {
		exceptions.Panicf("channel %d out of range for planes shaped %v", c, p.Shape())
	}
	plane := make([]float32, p.Height*p.Width)
	for pos := range plane {
		plane[pos] = p.Data[pos*p.Channels+c]
	}
	return plane
}

// String implements fmt.Stringer.
func (p *Planes) String() string {
	return fmt.Sprintf("Planes[%d, %d, %d]", p.Height, p.Width, p.Channels)
}

// resize returns img as NRGBA with height x width pixels, using the same linear interpolation used to
// normalize the images on disk. Images already in the right size are only converted.
func resize(img image.Image, height, width int) *image.NRGBA {
	if height <= 0 || width <= 0 {
		exceptions.Panicf("invalid target image size %dx%d (height x width)", height, width)
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}

// ImageToPlanes resizes img to height x width and returns its R, G and B channels as values in [0, 255].
// The alpha channel is dropped.
func ImageToPlanes(img image.Image, height, width int) *Planes {
	nrgba := resize(img, height, width)
	p := NewPlanes(height, width, 3)
	pos := 0
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*width]
		for x := 0; x < width; x++ {
			for c := 0; c < 3; c++ {
				p.Data[pos] = float32(row[4*x+c])
				pos++
			}
		}
	}
	return p
}

// ClassIndices returns the class index of each pixel of a decoded mask, shaped `[height*width]` in
// row-major order: the maximum of its R, G and B channels.
func ClassIndices(mask image.Image) []int32 {
	nrgba := imaging.Clone(mask)
	size := nrgba.Bounds().Size()
	indices := make([]int32, 0, size.X*size.Y)
	for y := 0; y < size.Y; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*size.X]
		for x := 0; x < size.X; x++ {
			indices = append(indices, int32(max(row[4*x], row[4*x+1], row[4*x+2])))
		}
	}
	return indices
}

// OneHot expands class indices (shaped `[height*width]`, row-major) into `depth` indicator planes. Pixels
// whose index is outside `[0, depth)` have all planes set to 0.
func OneHot[T constraints.Integer](indices []T, height, width, depth int) *Planes {
	if len(indices) != height*width {
		exceptions.Panicf("OneHot got %d indices for a %dx%d image", len(indices), height, width)
	}
	p := NewPlanes(height, width, depth)
	for pos, index := range indices {
		if index < 0 || uint64(index) >= uint64(depth) {
			continue
		}
		p.Data[pos*depth+int(index)] = 1
	}
	return p
}

// GroupChannels regroups the planes of a one-hot tensor: the planes listed in selected are kept, in the
// given order, followed by one background plane that is the sum of all the other planes.
//
// The output has `len(selected)+1` channels. If selected is empty, the output is the sum of all planes.
// The background is a plain sum: if a pixel has more than one active non-selected plane its background
// value is larger than 1.
func GroupChannels(oneHot *Planes, selected []int) *Planes {
	isSelected := make([]bool, oneHot.Channels)
	for _, c := range selected {
		if c < 0 || c >= oneHot.Channels {
			exceptions.Panicf("selected channel %d out of range for planes shaped %v", c, oneHot.Shape())
		}
		isSelected[c] = true
	}
	numOut := len(selected) + 1
	grouped := NewPlanes(oneHot.Height, oneHot.Width, numOut)
	numPixels := oneHot.Height * oneHot.Width
	for pixel := range numPixels {
		in := oneHot.Data[pixel*oneHot.Channels : (pixel+1)*oneHot.Channels]
		out := grouped.Data[pixel*numOut : (pixel+1)*numOut]
		for ii, c := range selected {
			out[ii] = in[c]
		}
		var background float32
		for c, value := range in {
			if !isSelected[c] {
				background += value
			}
		}
		out[numOut-1] = background
	}
	return grouped
}
