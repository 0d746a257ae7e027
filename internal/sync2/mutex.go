// Package sync2 implements the thread primitives spec.md §4.7 requires:
// a reentrant mutex and a condition variable, the Go-idiom counterpart of
// the pthread-backed ReentrantMutex/Condvar pair in
// libjvm/src/vm/src/runtime/thread/{mutex,condvar}.rs. Go's sync.Mutex is
// not reentrant and has no notion of a goroutine identity built in, so
// ReentrantMutex tracks ownership explicitly instead of delegating to a
// recursive pthread mutex.
package sync2

import "sync"

// ReentrantMutex may be locked more than once by the same goroutine;
// spec.md §4.4's monitorenter/monitorexit semantics and testable property
// 8 both require this. The zero value is ready to use.
type ReentrantMutex struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ownerID int64
	held    bool
	count   int
}

func (m *ReentrantMutex) init() {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
}

// Lock acquires the mutex for goroutine id, blocking while another
// goroutine holds it. Reentrant: the same id may call Lock again without
// blocking, incrementing the hold count.
func (m *ReentrantMutex) Lock(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for m.held && m.ownerID != id {
		m.cond.Wait()
	}
	m.ownerID = id
	m.held = true
	m.count++
}

// TryLock attempts to acquire without blocking.
func (m *ReentrantMutex) TryLock(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if m.held && m.ownerID != id {
		return false
	}
	m.ownerID = id
	m.held = true
	m.count++
	return true
}

// Unlock releases one level of reentry held by id. Panics if id does not
// hold the mutex: that indicates interpreter corruption, per spec.md §7's
// "VM-level panics only for invariant violations".
func (m *ReentrantMutex) Unlock(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if !m.held || m.ownerID != id {
		panic("sync2: Unlock by goroutine that does not hold the mutex")
	}
	m.count--
	if m.count == 0 {
		m.held = false
		m.cond.Signal()
	}
}

// HoldCount reports the current reentry depth held by id, or 0.
func (m *ReentrantMutex) HoldCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held && m.ownerID == id {
		return m.count
	}
	return 0
}

// releaseAll is used by Condvar.Wait: it drops the lock entirely
// (regardless of reentry depth) so another goroutine can enter, and
// returns the depth to restore on reacquire. Caller must hold m.mu.
func (m *ReentrantMutex) releaseAll(id int64) int {
	if !m.held || m.ownerID != id {
		panic("sync2: wait by goroutine that does not hold the mutex")
	}
	depth := m.count
	m.count = 0
	m.held = false
	m.cond.Signal()
	return depth
}

// reacquire restores full ownership at the given depth. Caller must hold
// m.mu and have verified the mutex is free.
func (m *ReentrantMutex) reacquire(id int64, depth int) {
	m.ownerID = id
	m.held = true
	m.count = depth
}
