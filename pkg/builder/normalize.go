// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"github.com/disintegration/imaging"
	"k8s.io/klog/v2"
)

// NormalizeImage makes sure the image stored in filePath is height x width pixels.
//
// If the decoded image has a different size, it is resized with linear interpolation and saved back to
// filePath, in the format given by its extension. It returns whether the file was rewritten. Normalizing an
// image that already has the right size doesn't touch the file, so calling it twice is a no-op the second time.
func NormalizeImage(filePath string, height, width int) (rewritten bool, err error) {
	img, err := imaging.Open(filePath)
	if err != nil {
		return false, &IOFailure{Op: "decode", Path: filePath, Err: err}
	}
	size := img.Bounds().Size()
	if size.X == width && size.Y == height {
		return false, nil
	}
	resized := imaging.Resize(img, width, height, imaging.Linear)
	if err = imaging.Save(resized, filePath); err != nil {
		return false, &IOFailure{Op: "rewrite", Path: filePath, Err: err}
	}
	klog.Infof("%s resized from %dx%d to %dx%d (height x width)", filePath, size.Y, size.X, height, width)
	return true, nil
}
