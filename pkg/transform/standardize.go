// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transform

import (
	"image"
	"math"
)

// StandardizeImage resizes img to height x width, converts it to RGB planes (see ImageToPlanes) and
// standardizes the values of the whole image to zero mean and unit variance:
//
//	(x - mean) / max(stddev, 1/sqrt(N))
//
// where N is the number of values. The lower bound on the denominator keeps uniform images finite.
func StandardizeImage(img image.Image, height, width int) *Planes {
	p := ImageToPlanes(img, height, width)
	standardize(p.Data)
	return p
}

func standardize(values []float32) {
	n := float64(len(values))
	var sum, sumSquares float64
	for _, v := range values {
		sum += float64(v)
		sumSquares += float64(v) * float64(v)
	}
	mean := sum / n
	variance := max(sumSquares/n-mean*mean, 0)
	stddev := max(math.Sqrt(variance), 1/math.Sqrt(n))
	for ii, v := range values {
		values[ii] = float32((float64(v) - mean) / stddev)
	}
}
