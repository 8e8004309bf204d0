// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"flag"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Empty(t, Map([]int(nil), strconv.Itoa))
}

func TestFlagVar(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	splits := FlagVar(fs, "split", []string{"train", "test"}, "splits",
		func(s string) (string, error) { return s, nil })
	sizes := FlagVar(fs, "sizes", nil, "sizes", strconv.Atoi)
	assert.Equal(t, []string{"train", "test"}, *splits)

	require.NoError(t, fs.Parse([]string{"-split", " val, ,train ", "-sizes=3,5"}))
	assert.Equal(t, []string{"val", "train"}, *splits)
	assert.Equal(t, []int{3, 5}, *sizes)
	assert.Equal(t, "val,train", fs.Lookup("split").Value.String())

	require.NoError(t, fs.Parse([]string{"-split="}))
	assert.Empty(t, *splits)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	FlagVar(fs, "sizes", nil, "sizes", strconv.Atoi)
	require.Error(t, fs.Parse([]string{"-sizes=1,x"}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
