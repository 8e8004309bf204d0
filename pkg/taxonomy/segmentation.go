// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package taxonomy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

var (
	// DefaultTotalClasses are the classes annotated in the segmentation masks. The pixel value
	// of a mask is the index of its class in this list.
	DefaultTotalClasses = []string{
		"sky", "building", "pole", "road", "pavement",
		"tree", "signsymbol", "fence", "car",
		"pedestrian", "bicyclist", "unlabelled",
	}

	// DefaultModelClasses are the classes a segmentation model is trained on. Everything else is background.
	DefaultModelClasses = []string{"sky", "building"}
)

// Segmentation describes the classes of a segmentation dataset and which of them are modeled.
//
// When not all classes are modeled, the classes left out are merged into one extra "background" class,
// appended after the model classes.
type Segmentation struct {
	totalClasses []string
	modelClasses []string
	classValues  []int
	allClasses   bool
}

// NewSegmentation creates the segmentation taxonomy for the given total classes and the (ordered) subset of
// modelClasses. Model class names are matched case-insensitively.
//
// If modelClasses holds exactly one class less than totalClasses, the taxonomy switches to "all classes"
// mode: every class is modeled and there is no background class. Any other number of model classes,
// including all of them, keeps the extra background class.
func NewSegmentation(totalClasses, modelClasses []string) (*Segmentation, error) {
	if len(totalClasses) == 0 {
		return nil, errors.New("segmentation taxonomy requires at least one class")
	}
	s := &Segmentation{totalClasses: make([]string, len(totalClasses))}
	for ii, name := range totalClasses {
		name = strings.ToLower(strings.TrimSpace(name))
		if slices.Contains(s.totalClasses[:ii], name) {
			return nil, errors.Wrapf(ErrDuplicateClass, "total class %q", name)
		}
		s.totalClasses[ii] = name
	}

	s.modelClasses = make([]string, 0, len(modelClasses))
	s.classValues = make([]int, 0, len(modelClasses))
	for _, name := range modelClasses {
		name = strings.ToLower(strings.TrimSpace(name))
		idx := slices.Index(s.totalClasses, name)
		if idx < 0 {
			return nil, errors.Wrapf(ErrUnknownClass, "model class %q not in %v", name, s.totalClasses)
		}
		if slices.Contains(s.classValues, idx) {
			return nil, errors.Wrapf(ErrDuplicateClass, "model class %q", name)
		}
		s.modelClasses = append(s.modelClasses, name)
		s.classValues = append(s.classValues, idx)
	}

	if len(s.modelClasses) == len(s.totalClasses)-1 {
		s.allClasses = true
		s.modelClasses = slices.Clone(s.totalClasses)
		s.classValues = make([]int, len(s.totalClasses))
		for ii := range s.classValues {
			s.classValues[ii] = ii
		}
	}
	return s, nil
}

// DefaultSegmentation returns the taxonomy built from DefaultTotalClasses and DefaultModelClasses.
func DefaultSegmentation() *Segmentation {
	s, err := NewSegmentation(DefaultTotalClasses, DefaultModelClasses)
	if err != nil {
		panic(err)
	}
	return s
}

// AllClasses returns whether every class is modeled, in which case there is no background class.
func (s *Segmentation) AllClasses() bool { return s.allClasses }

// NumTotalClasses returns the number of classes annotated in the masks.
func (s *Segmentation) NumTotalClasses() int { return len(s.totalClasses) }

// NumModelClasses returns the number of output classes of a model: the model classes plus the background
// class, or all the classes in "all classes" mode.
func (s *Segmentation) NumModelClasses() int {
	if s.allClasses {
		return len(s.totalClasses)
	}
	return len(s.modelClasses) + 1
}

// TotalClasses returns a copy of the names of all classes.
func (s *Segmentation) TotalClasses() []string { return slices.Clone(s.totalClasses) }

// ModelClasses returns a copy of the names of the modeled classes, in configured order.
func (s *Segmentation) ModelClasses() []string { return slices.Clone(s.modelClasses) }

// ClassValues returns the indices (into the total classes) of the modeled classes, in configured order.
func (s *Segmentation) ClassValues() []int { return slices.Clone(s.classValues) }

// String implements fmt.Stringer.
func (s *Segmentation) String() string {
	if s.allClasses {
		return fmt.Sprintf("Segmentation(all %d classes)", len(s.totalClasses))
	}
	return fmt.Sprintf("Segmentation(%d of %d classes: %v + background)",
		len(s.modelClasses), len(s.totalClasses), s.modelClasses)
}
