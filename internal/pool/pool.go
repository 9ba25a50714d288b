// Package pool hands partial-index accumulators between indexer workers and
// the injector.
//
// Pooled accumulators are kept in non-increasing weight order. Workers take
// the second-largest one to keep growing it, which leaves the largest in front
// as the next injection source. Nothing in this package blocks: an empty or
// single-entry pool hands a worker a fresh accumulator, and an empty pool tells
// the injector so instead of waiting.
package pool

import (
	"log"
	"strconv"
	"strings"
	"sync"
)

// Weighted is anything the pool can order.
type Weighted interface {
	Weight() int
}

// Pool is a size-ordered collection of accumulators guarded by one mutex.
// While an accumulator is inside the pool, the pool owns it; once returned
// from an acquire call, the caller does.
type Pool[T Weighted] struct {
	mu    sync.Mutex
	items []T
	newFn func() T
}

// New creates an empty pool. newFn builds an empty accumulator when a worker
// asks for a target and there is nothing suitable to hand out.
func New[T Weighted](newFn func() T) *Pool[T] {
	return &Pool[T]{newFn: newFn}
}

// Size returns the number of pooled accumulators.
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Release puts acc back, before the first pooled accumulator that is strictly
// lighter. Equal weights keep their earlier neighbours in front.
func (p *Pool[T]) Release(acc T) {
	weight := acc.Weight()

	p.mu.Lock()
	defer p.mu.Unlock()

	i := 0
	for ; i < len(p.items); i++ {
		if p.items[i].Weight() < weight {
			break
		}
	}

	var zero T
	p.items = append(p.items, zero)
	copy(p.items[i+1:], p.items[i:])
	p.items[i] = acc
}

// AcquireTarget returns an accumulator for a worker to fill.
// With more than one pooled it removes the second-largest; otherwise it
// returns a new empty one. It never blocks.
func (p *Pool[T]) AcquireTarget() T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) > 1 {
		acc := p.items[1]
		p.items = removeAt(p.items, 1)
		return acc
	}
	return p.newFn()
}

// AcquireForInjection removes and returns the largest accumulator.
// The second result is false when the pool is empty.
func (p *Pool[T]) AcquireForInjection() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) == 0 {
		var zero T
		return zero, false
	}

	acc := p.items[0]
	p.items = removeAt(p.items, 0)
	return acc, true
}

// Weights returns the weights of pooled accumulators, front to back.
func (p *Pool[T]) Weights() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	weights := make([]int, len(p.items))
	for i, acc := range p.items {
		weights[i] = acc.Weight()
	}
	return weights
}

// Describe returns a one-line summary of pooled weights.
func (p *Pool[T]) Describe() string {
	var b strings.Builder
	b.WriteString("Storages waiting for injection:")
	for _, w := range p.Weights() {
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(w))
		b.WriteString(";")
	}
	return b.String()
}

// LogState writes Describe to the standard logger.
func (p *Pool[T]) LogState() {
	log.Println(p.Describe())
}

func removeAt[T any](items []T, i int) []T {
	copy(items[i:], items[i+1:])
	var zero T
	items[len(items)-1] = zero
	return items[:len(items)-1]
}
