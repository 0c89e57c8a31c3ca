package diagram

import "fmt"

// IDKind is the namespace an identifier is allocated from.
type IDKind string

const (
	IDKindTask  IDKind = "task"
	IDKindBlock IDKind = "block"
	IDKindPlay  IDKind = "play"
)

// Allocator hands out per-kind identifiers starting at 1.
// It is owned by a single generation run and is not safe for concurrent use.
type Allocator struct {
	next map[IDKind]int
}

// NewAllocator returns an allocator with every kind at 1.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.Reset()
	return a
}

// Reset puts every kind back to 1.
func (a *Allocator) Reset() {
	a.next = map[IDKind]int{
		IDKindTask:  1,
		IDKindBlock: 1,
		IDKindPlay:  1,
	}
}

// Next returns the next number for kind.
func (a *Allocator) Next(kind IDKind) int {
	if a.next == nil {
		a.Reset()
	}
	n, ok := a.next[kind]
	if !ok {
		n = 1
	}
	a.next[kind] = n + 1
	return n
}

// NextName returns the next identifier for kind, e.g. "task_3".
func (a *Allocator) NextName(kind IDKind) string {
	return fmt.Sprintf("%s_%d", kind, a.Next(kind))
}
