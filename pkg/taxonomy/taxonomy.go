// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package taxonomy holds the label enumerations used when building and transforming the image datasets:
//
//   - Categories: the classification labels, derived from the names of the directories holding the images.
//   - Segmentation: the segmentation classes, with the subset of classes actually modeled.
//
// Values are immutable once created and are meant to be passed explicitly to the components that need them.
package taxonomy

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownCategory is returned when a directory name matches none, or more than one, of the categories.
	ErrUnknownCategory = errors.New("unknown image category")

	// ErrUnknownClass is returned when a model class is not one of the total classes.
	ErrUnknownClass = errors.New("unknown segmentation class")

	// ErrDuplicateClass is returned when a model class is listed more than once.
	ErrDuplicateClass = errors.New("duplicate segmentation class")
)

// DefaultCategoryNames lists the scene categories of the classification dataset. The label is the index.
var DefaultCategoryNames = []string{"buildings", "forest", "glacier", "mountain", "sea", "street"}

// Categories is an ordered enumeration of classification labels.
type Categories struct {
	names []string
}

// NewCategories creates a Categories enumeration: the label of each category is its position in names.
// Names are matched case-insensitively.
func NewCategories(names ...string) (*Categories, error) {
	if len(names) == 0 {
		return nil, errors.New("at least one category is required")
	}
	c := &Categories{names: make([]string, len(names))}
	for ii, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, errors.Errorf("category #%d has an empty name", ii)
		}
		if slices.Contains(c.names[:ii], name) {
			return nil, errors.Errorf("category %q listed more than once", name)
		}
		c.names[ii] = name
	}
	return c, nil
}

// DefaultCategories returns the categories of the scene classification dataset.
func DefaultCategories() *Categories {
	c, err := NewCategories(DefaultCategoryNames...)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of categories.
func (c *Categories) Len() int { return len(c.names) }

// Names returns a copy of the category names, in label order.
func (c *Categories) Names() []string { return slices.Clone(c.names) }

// Name returns the name of the category with the given label.
func (c *Categories) Name(label int) string {
	if label < 0 || label >= len(c.names) {
		return "unknown"
	}
	return c.names[label]
}

// LabelFromDirectory returns the label of the only category whose name is a substring of dir (case-insensitive).
//
// It returns an error wrapping ErrUnknownCategory if no category, or more than one, matches.
func (c *Categories) LabelFromDirectory(dir string) (int, error) {
	lowered := strings.ToLower(dir)
	label := -1
	for ii, name := range c.names {
		if !strings.Contains(lowered, name) {
			continue
		}
		if label >= 0 {
			return -1, errors.Wrapf(ErrUnknownCategory, "directory %q matches both %q and %q",
				dir, c.names[label], name)
		}
		label = ii
	}
	if label < 0 {
		return -1, errors.Wrapf(ErrUnknownCategory, "directory %q matches none of %v", dir, c.names)
	}
	return label, nil
}
