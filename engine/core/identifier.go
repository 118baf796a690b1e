package core

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// IdentifierPool hands out ids in [0, capacity) tracked by a bitmap. Scanning
// resumes right after the last id handed out, so steady allocate/release
// cycles stay O(1) on average. The pool is not synchronized.
type IdentifierPool[T constraints.Unsigned] struct {
	words    []uint64
	capacity uint32
	used     uint32
	next     uint32
}

func NewIdentifierPool[T constraints.Unsigned](capacity uint32) *IdentifierPool[T] {
	return &IdentifierPool[T]{
		words:    make([]uint64, (capacity+63)/64),
		capacity: capacity,
	}
}

func (p *IdentifierPool[T]) Capacity() uint32 { return p.capacity }

func (p *IdentifierPool[T]) Used() uint32 { return p.used }

// Acquire returns a free id, or false when every id is taken.
func (p *IdentifierPool[T]) Acquire() (T, bool) {
	if p.used == p.capacity {
		return 0, false
	}
	for n := uint32(0); n < p.capacity; n++ {
		i := (p.next + n) % p.capacity
		word, bit := i/64, uint64(1)<<(i%64)
		// Existing free spot. Take it.
		if p.words[word]&bit == 0 {
			p.words[word] |= bit
			p.used++
			p.next = (i + 1) % p.capacity
			return T(i), true
		}
	}
	return 0, false
}

// Release returns id to the pool and makes it the next candidate.
func (p *IdentifierPool[T]) Release(id T) error {
	i := uint32(id)
	if i >= p.capacity {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", i, p.capacity)
	}
	word, bit := i/64, uint64(1)<<(i%64)
	if p.words[word]&bit == 0 {
		return fmt.Errorf("identifier release: id '%d' was not acquired. Nothing was done", i)
	}
	p.words[word] &^= bit
	p.used--
	p.next = i
	return nil
}

func (p *IdentifierPool[T]) InUse(id T) bool {
	i := uint32(id)
	if i >= p.capacity {
		return false
	}
	return p.words[i/64]&(uint64(1)<<(i%64)) != 0
}
