// Package gate provides a counting semaphore whose count may be raised
// beyond its starting value, used to hand work and wake-ups between
// goroutines.
package gate

import "sync"

// Gate is a counting semaphore. The zero value is not usable; call New.
type Gate struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count uint64
}

// New returns a Gate holding initial permits.
func New(initial uint64) *Gate {
	g := &Gate{count: initial}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Post adds one permit and wakes one waiter.
func (g *Gate) Post() {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
	g.cond.Signal()
}

// Wait blocks until a permit is available and takes it.
func (g *Gate) Wait() {
	g.mu.Lock()
	for g.count == 0 {
		g.cond.Wait()
	}
	g.count--
	g.mu.Unlock()
}

// Value reports the current permit count. Diagnostic only.
func (g *Gate) Value() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
