package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocatorPerKind(t *testing.T) {
	a := NewAllocator()

	assert.Equal(t, 1, a.Next(IDKindTask))
	assert.Equal(t, 2, a.Next(IDKindTask))
	assert.Equal(t, 1, a.Next(IDKindBlock))
	assert.Equal(t, 3, a.Next(IDKindTask))
	assert.Equal(t, "play_1", a.NextName(IDKindPlay))
	assert.Equal(t, "block_2", a.NextName(IDKindBlock))
}

func TestAllocatorReset(t *testing.T) {
	a := NewAllocator()
	a.Next(IDKindTask)
	a.Next(IDKindPlay)

	a.Reset()

	assert.Equal(t, "task_1", a.NextName(IDKindTask))
	assert.Equal(t, "play_1", a.NextName(IDKindPlay))
}

func TestAllocatorZeroValue(t *testing.T) {
	var a Allocator
	assert.Equal(t, "task_1", a.NextName(IDKindTask))
	assert.Equal(t, "task_2", a.NextName(IDKindTask))
}

func TestAllocatorIndependentInstances(t *testing.T) {
	a, b := NewAllocator(), NewAllocator()
	a.Next(IDKindTask)
	a.Next(IDKindTask)

	assert.Equal(t, 1, b.Next(IDKindTask))
}
