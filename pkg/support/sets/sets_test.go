// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Of("b.png", "a.png")
	assert.Len(t, s, 2)
	assert.True(t, s.Contains("a.png"))
	assert.False(t, s.Contains("c.png"))
	s.Add("c.png", "a.png")
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, s.Sorted())

	other := Of("b.png", "d.png")
	assert.Equal(t, []string{"a.png", "c.png"}, s.Difference(other))
	assert.Equal(t, []string{"d.png"}, other.Difference(s))
	assert.Nil(t, Of[string]().Difference(s))

	u := s.Union(other)
	assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png"}, u.Sorted())
	assert.Len(t, s, 3, "union doesn't change its operands")

	var empty Set[int]
	assert.Equal(t, []int{3}, empty.Union(Of(3)).Sorted())

	keys := FromMapKeys(map[int]string{7: "x", -1: "y"})
	assert.Equal(t, []int{-1, 7}, keys.Sorted())
}
