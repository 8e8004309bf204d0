// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/gomlx/imagerecords/pkg/support/fsutil"
	"github.com/gomlx/imagerecords/pkg/support/sets"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const segmentationLogEvery = 100

// BuildSegmentation writes one record per file in imagesDir, paired with the file of the same name in
// masksDir, to the TFRecord file sinkPath (parent directories are created as needed).
//
// Files are visited in name order. Both the image and the mask are normalized (see NormalizeImage) before
// their raw bytes are read.
//
// Masks without a corresponding image are ignored, and an image without a mask fails with an *IOFailure when
// it is reached. Use WithPairValidation to check the pairing before anything is written.
func (b *Builder) BuildSegmentation(imagesDir, masksDir, sinkPath string) (report *Report, err error) {
	if err = b.checkSize(); err != nil {
		return nil, err
	}
	names, err := fsutil.ListFiles(imagesDir)
	if err != nil {
		return nil, &IOFailure{Op: "list", Path: imagesDir, Err: err}
	}
	if b.validatePairs {
		if err = validatePairs(names, masksDir); err != nil {
			return nil, err
		}
	}

	report = newReport("segmentation", b, sinkPath)
	s, err := b.openSink(sinkPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = s.finish(err)
		if err != nil {
			report = nil
			return
		}
		report.done(s.w)
		klog.Infof("Wrote %d segmentation records to %q", report.NumRecords, sinkPath)
	}()

	pBar := b.newProgressBar(len(names), filepath.Base(sinkPath))
	defer func() { closeProgressBar(pBar, err) }()
	for num, name := range names {
		if num%segmentationLogEvery == 0 {
			klog.V(1).Infof("Image number %d", num)
		}
		paths := [2]string{filepath.Join(imagesDir, name), filepath.Join(masksDir, name)}
		var raws [2][]byte
		for _, filePath := range paths {
			var rewritten bool
			rewritten, err = NormalizeImage(filePath, b.height, b.width)
			if err != nil {
				return
			}
			if rewritten {
				report.Rewritten = append(report.Rewritten, filePath)
			}
		}
		for ii, filePath := range paths {
			raws[ii], err = os.ReadFile(filePath)
			if err != nil {
				err = &IOFailure{Op: "read", Path: filePath, Err: err}
				return
			}
		}
		example := tfexample.New().
			Set(ImageKey, tfexample.BytesFeature(raws[0])).
			Set(MaskKey, tfexample.BytesFeature(raws[1]))
		if err = s.write(example); err != nil {
			return
		}
		if pBar != nil {
			_ = pBar.Add(1)
		}
	}
	return
}

// validatePairs checks that masksDir holds exactly the given image names.
func validatePairs(imageNames []string, masksDir string) error {
	maskNames, err := fsutil.ListFiles(masksDir)
	if err != nil {
		return &IOFailure{Op: "list", Path: masksDir, Err: err}
	}
	if slices.Equal(imageNames, maskNames) {
		return nil
	}
	images, masks := sets.Of(imageNames...), sets.Of(maskNames...)
	missingMasks, missingImages := images.Difference(masks), masks.Difference(images)
	return errors.Wrapf(ErrUnalignedPairs, "%d images without mask %v, %d masks without image %v",
		len(missingMasks), truncateNames(missingMasks), len(missingImages), truncateNames(missingImages))
}

func truncateNames(names []string) []string {
	const maxNames = 5
	if len(names) <= maxNames {
		return names
	}
	return append(slices.Clone(names[:maxNames]), "...")
}
