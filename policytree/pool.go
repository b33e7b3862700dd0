package policytree

import "sync"

// scratch pools the per-call buffers of the search: row index lists for child
// subsets and membership masks for partitioning. Buffers are owned by the call
// that took them until they are returned.
type scratch struct {
	ints  sync.Pool // *[]int
	masks sync.Pool // *[]bool, always n long and all false when pooled
}

func newScratch(n int) *scratch {
	s := &scratch{}
	s.masks.New = func() any {
		m := make([]bool, n)
		return &m
	}
	return s
}

// getInts returns a buffer of length size.
func (s *scratch) getInts(size int) *[]int {
	if v, ok := s.ints.Get().(*[]int); ok && cap(*v) >= size {
		*v = (*v)[:size]
		return v
	}
	buf := make([]int, size)
	return &buf
}

// returnInts hands a buffer back to the pool.
func (s *scratch) returnInts(v *[]int) {
	if v != nil {
		s.ints.Put(v)
	}
}

// getMask returns an all-false mask over every observation.
func (s *scratch) getMask() *[]bool {
	return s.masks.Get().(*[]bool)
}

// returnMask hands a mask back; the caller must have cleared it.
func (s *scratch) returnMask(m *[]bool) {
	s.masks.Put(m)
}
