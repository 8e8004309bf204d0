// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tfexample encodes and decodes `tf.train.Example` protos, the record format consumed by TensorFlow
// input pipelines.
//
// The wire format follows tensorflow/core/example/example.proto and feature.proto:
//
//	message Example   { Features features = 1; }
//	message Features  { map<string, Feature> feature = 1; }
//	message Feature   { oneof kind { BytesList bytes_list = 1; FloatList float_list = 2; Int64List int64_list = 3; } }
//	message BytesList { repeated bytes value = 1; }
//	message FloatList { repeated float value = 1 [packed = true]; }
//	message Int64List { repeated int64 value = 1 [packed = true]; }
//
// It is implemented directly on top of protowire, so no generated code is needed.
package tfexample

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Kind of values held by a Feature.
type Kind int

const (
	InvalidKind Kind = iota
	BytesKind
	FloatKind
	Int64Kind
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case BytesKind:
		return "bytes_list"
	case FloatKind:
		return "float_list"
	case Int64Kind:
		return "int64_list"
	}
	return "invalid"
}

var (
	// ErrMissingFeature is returned by the typed accessors when the key is not present.
	ErrMissingFeature = errors.New("feature not present in example")

	// ErrWrongKind is returned by the typed accessors when the feature holds a different kind of values.
	ErrWrongKind = errors.New("feature holds a different kind of values")
)

// Feature holds a list of values of one Kind.
type Feature struct {
	Kind   Kind
	Bytes  [][]byte
	Floats []float32
	Int64s []int64
}

// BytesFeature returns a bytes_list Feature.
func BytesFeature(values ...[]byte) *Feature {
	return &Feature{Kind: BytesKind, Bytes: values}
}

// FloatFeature returns a float_list Feature.
func FloatFeature(values ...float32) *Feature {
	return &Feature{Kind: FloatKind, Floats: values}
}

// Int64Feature returns an int64_list Feature.
func Int64Feature(values ...int64) *Feature {
	return &Feature{Kind: Int64Kind, Int64s: values}
}

// Len returns the number of values in the feature.
func (f *Feature) Len() int {
	switch f.Kind {
	case BytesKind:
		return len(f.Bytes)
	case FloatKind:
		return len(f.Floats)
	case Int64Kind:
		return len(f.Int64s)
	}
	return 0
}

// Example is a map of named features, the contents of one record.
type Example struct {
	Features map[string]*Feature
}

// New returns an empty Example.
func New() *Example {
	return &Example{Features: make(map[string]*Feature)}
}

// Set the feature under key. Returns itself, to allow chain of method calls.
func (e *Example) Set(key string, feature *Feature) *Example {
	if e.Features == nil {
		e.Features = make(map[string]*Feature)
	}
	e.Features[key] = feature
	return e
}

// Keys returns the feature names, sorted.
func (e *Example) Keys() []string {
	keys := make([]string, 0, len(e.Features))
	for key := range e.Features {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func (e *Example) feature(key string, kind Kind) (*Feature, error) {
	f, found := e.Features[key]
	if !found || f == nil {
		return nil, errors.Wrapf(ErrMissingFeature, "feature %q", key)
	}
	if f.Kind != kind {
		return nil, errors.Wrapf(ErrWrongKind, "feature %q is a %s, wanted %s", key, f.Kind, kind)
	}
	return f, nil
}

// Bytes returns the single value of the bytes_list feature under key.
func (e *Example) Bytes(key string) ([]byte, error) {
	f, err := e.feature(key, BytesKind)
	if err != nil {
		return nil, err
	}
	if len(f.Bytes) != 1 {
		return nil, errors.Errorf("feature %q has %d values, wanted 1", key, len(f.Bytes))
	}
	return f.Bytes[0], nil
}

// Int64 returns the single value of the int64_list feature under key.
func (e *Example) Int64(key string) (int64, error) {
	f, err := e.feature(key, Int64Kind)
	if err != nil {
		return 0, err
	}
	if len(f.Int64s) != 1 {
		return 0, errors.Errorf("feature %q has %d values, wanted 1", key, len(f.Int64s))
	}
	return f.Int64s[0], nil
}

// Floats returns the values of the float_list feature under key.
func (e *Example) Floats(key string) ([]float32, error) {
	f, err := e.feature(key, FloatKind)
	if err != nil {
		return nil, err
	}
	return f.Floats, nil
}

// String returns a short description of the example, without the values.
func (e *Example) String() string {
	parts := make([]string, 0, len(e.Features))
	for _, key := range e.Keys() {
		f := e.Features[key]
		parts = append(parts, fmt.Sprintf("%s:%s[%d]", key, f.Kind, f.Len()))
	}
	return "Example{" + strings.Join(parts, ", ") + "}"
}
