package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBox(t *testing.T) {
	b := NewBox(10, 20, 110, 70)
	assert.Equal(t, Box{X: 10, Y: 20, W: 100, H: 50}, b)
	assert.Equal(t, 5000, b.Area())
	assert.InDelta(t, 2.0, b.AspectRatio(), 1e-9)
}

func TestBoxAspectRatioZeroHeight(t *testing.T) {
	b := Box{X: 0, Y: 0, W: 10, H: 0}
	assert.Equal(t, 0.0, b.AspectRatio())
	assert.True(t, b.Empty())
}

func TestBoxUnion(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(5, 5, 20, 15)
	u := a.Union(b)
	assert.Equal(t, NewBox(0, 0, 20, 15), u)

	// Union with an empty box is the identity.
	assert.Equal(t, a, a.Union(Box{}))
	assert.Equal(t, a, Box{}.Union(a))
}

func TestBoxIntersects(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	assert.True(t, a.Intersects(NewBox(5, 5, 15, 15)))
	assert.False(t, a.Intersects(NewBox(10, 0, 20, 10)))
}
