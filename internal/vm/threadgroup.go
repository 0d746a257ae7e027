package vm

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ThreadGroup launches and joins the goroutines backing Java Thread.start
// calls (spec.md §5: "Multiple Java threads map one-to-one to OS threads").
// golang.org/x/sync/errgroup gives this a single place to wait on every
// spawned thread and collect the first uncaught panic/error, the
// fan-out-join pattern the wider example pack reaches for (see DESIGN.md).
// VM.Execute does not call Wait, so that error is not carried to the VM's
// exit path and spawned threads are not joined before Execute returns.
type ThreadGroup struct {
	vm     *VM
	group  *errgroup.Group
	nextID atomic.Int64
}

func NewThreadGroup(vm *VM) *ThreadGroup {
	g := &ThreadGroup{vm: vm, group: &errgroup.Group{}}
	g.nextID.Store(1) // id 1 is reserved for the main thread (vm.mainThread)
	return g
}

// Spawn starts a new Thread running body in its own goroutine and returns
// it immediately; body's return value (or recovered panic, converted to an
// error) is collected by Wait.
func (g *ThreadGroup) Spawn(name string, body func(th *Thread) error) *Thread {
	th := &Thread{ID: g.nextID.Add(1), Name: name, vm: g.vm}
	th.alive.Store(true)
	g.vm.registerThread(th)

	g.group.Go(func() (err error) {
		defer th.alive.Store(false)
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{name: th.Name, value: r}
			}
		}()
		return body(th)
	})
	return th
}

// Wait blocks until every spawned thread has returned, returning the first
// non-nil error or recovered panic, if any.
func (g *ThreadGroup) Wait() error {
	return g.group.Wait()
}

type panicError struct {
	name  string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("thread %s panicked: %v", e.name, e.value)
}
