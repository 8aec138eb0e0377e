package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicOperations(t *testing.T) {
	s := New("a", "b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))

	s.Add("c")
	assert.True(t, s.Contains("c"))

	s.Remove("a")
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 2, s.Len())
}

func TestCopyIsIndependent(t *testing.T) {
	s := New(1, 2)
	c := s.Copy()
	c.Add(3)
	assert.False(t, s.Contains(3))
	assert.True(t, c.Contains(3))
}

func TestBulkOperations(t *testing.T) {
	s := New("a")
	s.AddAll(New("b", "c"))
	assert.Equal(t, 3, s.Len())

	s.RemoveAll(New("a", "b"))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("c"))
}

func TestAlgebra(t *testing.T) {
	a := New(1, 2, 3)
	b := New(3, 4)

	t.Run("union", func(t *testing.T) {
		u := a.Union(b)
		assert.Equal(t, 4, u.Len())
		// Union must not mutate its operands.
		assert.Equal(t, 3, a.Len())
		assert.Equal(t, 2, b.Len())
	})

	t.Run("diff", func(t *testing.T) {
		d := a.Diff(b)
		assert.Equal(t, 2, d.Len())
		assert.True(t, d.Contains(1))
		assert.False(t, d.Contains(3))
	})

	t.Run("intersect", func(t *testing.T) {
		i := a.Intersect(b)
		assert.Equal(t, 1, i.Len())
		assert.True(t, i.Contains(3))
	})

	t.Run("intersects", func(t *testing.T) {
		assert.True(t, a.Intersects(b))
		assert.False(t, a.Intersects(New(9)))
	})
}

func TestSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(New("c", "a", "b")))
	assert.Empty(t, Sorted(New[int]()))
}

func TestItems(t *testing.T) {
	items := New("x").Items()
	assert.Equal(t, []string{"x"}, items)
}
