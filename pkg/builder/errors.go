// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"fmt"

	"github.com/pkg/errors"
)

// IOFailure is returned when a file can't be listed, read, decoded, written or created. It aborts the build.
type IOFailure struct {
	Op   string
	Path string
	Err  error
}

// Error implements error.
func (e *IOFailure) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOFailure) Unwrap() error { return e.Err }

// ErrUnalignedPairs is returned by BuildSegmentation, when pair validation is enabled, if the images and masks
// directories don't hold the same file names.
var ErrUnalignedPairs = errors.New("images and masks are not aligned")

// IsIOFailure returns whether err is, or wraps, an *IOFailure.
func IsIOFailure(err error) bool {
	var failure *IOFailure
	return errors.As(err, &failure)
}
