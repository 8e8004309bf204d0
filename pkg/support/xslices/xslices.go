// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides slice helpers missing from the standard "slices" package.
package xslices

import (
	"flag"
	"fmt"
	"strings"
)

// Map returns a new slice with fn applied to each element of in.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// FlagVar defines in fs a flag for a comma-separated list of T with the given name, default value and usage.
// Each element is trimmed of spaces, empty elements are dropped, and the rest are parsed with parserFn.
func FlagVar[T any](fs *flag.FlagSet, name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &listFlag[T]{parsed: defaultValue, parserFn: parserFn}
	fs.Var(f, name, usage)
	return &f.parsed
}

// listFlag implements flag.Value for a list of T.
type listFlag[T any] struct {
	parsed   []T
	parserFn func(valueStr string) (T, error)
}

func (f *listFlag[T]) String() string {
	if f == nil || len(f.parsed) == 0 {
		return ""
	}
	return strings.Join(Map(f.parsed, func(e T) string { return fmt.Sprint(e) }), ",")
}

func (f *listFlag[T]) Set(listStr string) error {
	f.parsed = f.parsed[:0:0]
	for _, part := range strings.Split(listStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := f.parserFn(part)
		if err != nil {
			return err
		}
		f.parsed = append(f.parsed, value)
	}
	return nil
}
