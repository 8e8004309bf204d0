// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"os"
	"path/filepath"

	"github.com/gomlx/imagerecords/pkg/support/fsutil"
	"github.com/gomlx/imagerecords/pkg/tfexample"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// classificationLogEvery is the frequency, in images per directory, of the progress log lines.
const classificationLogEvery = 299

// BuildClassification writes one record per image found under `rootDir/<category>/`, to the TFRecord file
// sinkPath (parent directories are created as needed).
//
// Category directories are visited in name order, and within each the files in name order. For each file:
// the image is normalized (see NormalizeImage), its raw bytes are read and the label is derived from the
// directory name.
//
// It returns an error wrapping taxonomy.ErrUnknownCategory if a directory matches no category (or more than
// one), or an *IOFailure if any file can't be handled. In both cases the build stops immediately.
func (b *Builder) BuildClassification(rootDir, sinkPath string) (report *Report, err error) {
	if b.categories == nil {
		return nil, errors.New("BuildClassification requires categories, see Builder.WithCategories")
	}
	if err = b.checkSize(); err != nil {
		return nil, err
	}
	dirs, err := fsutil.ListDirs(rootDir)
	if err != nil {
		return nil, &IOFailure{Op: "list", Path: rootDir, Err: err}
	}
	filesPerDir := make([][]string, len(dirs))
	total := 0
	for ii, dir := range dirs {
		filesPerDir[ii], err = fsutil.ListFiles(filepath.Join(rootDir, dir))
		if err != nil {
			return nil, &IOFailure{Op: "list", Path: filepath.Join(rootDir, dir), Err: err}
		}
		total += len(filesPerDir[ii])
	}

	report = newReport("classification", b, sinkPath)
	report.Labels = make(map[string]int)
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
		klog.Infof("Wrote %d classification records to %q", report.NumRecords, sinkPath)
	}()

	pBar := b.newProgressBar(total, filepath.Base(sinkPath))
	defer func() { closeProgressBar(pBar, err) }()
	for dirNum, dir := range dirs {
		for imgNum, name := range filesPerDir[dirNum] {
			if imgNum%classificationLogEvery == 0 {
				klog.V(1).Infof("Directory number %d and image number %d", dirNum, imgNum)
			}
			imgPath := filepath.Join(rootDir, dir, name)
			var rewritten bool
			rewritten, err = NormalizeImage(imgPath, b.height, b.width)
			if err != nil {
				return
			}
			if rewritten {
				report.Rewritten = append(report.Rewritten, imgPath)
			}
			var raw []byte
			raw, err = os.ReadFile(imgPath)
			if err != nil {
				err = &IOFailure{Op: "read", Path: imgPath, Err: err}
				return
			}
			var label int
			label, err = b.categories.LabelFromDirectory(dir)
			if err != nil {
				return
			}
			example := tfexample.New().
				Set(LabelKey, tfexample.Int64Feature(int64(label))).
				Set(ImageKey, tfexample.BytesFeature(raw))
			if err = s.write(example); err != nil {
				return
			}
			report.Labels[b.categories.Name(label)]++
			if pBar != nil {
				_ = pBar.Add(1)
			}
		}
	}
	return
}
