package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_BooleanValues(t *testing.T) {
	s := Parse("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, s.On(name), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, s.On(name), name)
	}
}

func TestFor_Percentages(t *testing.T) {
	s := Parse("always=100%,never=0%,canary=25%,junk=abc")

	assert.True(t, s.For("always", 1))
	assert.False(t, s.For("never", 1))
	assert.False(t, s.For("junk", 1))
	assert.False(t, s.For("canary", 0), "rollouts need an account")

	first := s.For("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.For("canary", 42))
	}
}

func TestParse_SkipsMalformed(t *testing.T) {
	s := Parse(" bad ,X=on, y = 20% ,z=off,=on,w= ")
	assert.Equal(t, []string{"x", "y", "z"}, s.Names())
	assert.True(t, s.On(" X "))

	snap := s.Snapshot(123)
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.False(t, s.On(MediaThumbnails))
	assert.Empty(t, s.Snapshot(1))
}
