package vm

import (
	"sync/atomic"
	"time"

	"github.com/mtanaka/corevm/internal/runtime"
	"github.com/mtanaka/corevm/internal/sync2"
)

// Thread is the per-goroutine execution context spec.md §4.7 and §5
// describe: "each Java thread owns its frame stack exclusively; multiple
// Java threads map one-to-one to OS threads [goroutines, here]." The
// teacher has no Thread type at all (its VM executes one call chain
// directly); this is built fresh, grounded in spec.md §4.4/§4.7's frame
// stack description and in how libjvm's thread/condvar.rs models one
// OS-level thread owning one condition variable for park/unpark.
type Thread struct {
	ID   int64
	Name string
	vm   *VM

	frames []*Frame

	interrupted atomic.Bool
	alive       atomic.Bool

	// sleepMu/sleepCond back Thread.sleep: a scratch monitor this thread
	// waits on for the requested duration, woken early by Interrupt so
	// sleep can report InterruptedException instead of just timing out
	// (spec.md §5, SPEC_FULL.md §11).
	sleepMu   sync2.ReentrantMutex
	sleepCond sync2.Condvar

	// Handle is the java/lang/Thread instance this Go goroutine executes
	// on behalf of, if any. Nothing in this VM assigns it, so it stays nil
	// for the main thread and for threads started by start0.
	Handle *runtime.Handle
}

func (t *Thread) pushFrame(f *Frame) {
	t.frames = append(t.frames, f)
}

func (t *Thread) popFrame() {
	t.frames = t.frames[:len(t.frames)-1]
}

func (t *Thread) currentFrame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func (t *Thread) Depth() int { return len(t.frames) }

func (t *Thread) Interrupt() {
	t.interrupted.Store(true)
	t.sleepMu.Lock(t.ID)
	t.sleepCond.Broadcast(&t.sleepMu)
	t.sleepMu.Unlock(t.ID)
}
func (t *Thread) Interrupted() bool   { return t.interrupted.Swap(false) }
func (t *Thread) IsInterrupted() bool { return t.interrupted.Load() }
func (t *Thread) IsAlive() bool       { return t.alive.Load() }

// sleep blocks for millis, returning false (and clearing the interrupt
// flag) if woken early by Interrupt rather than by timing out — the
// signal Thread.sleep's native needs to throw InterruptedException
// (spec.md §4.6, §5).
func (t *Thread) sleep(millis int64) bool {
	t.sleepMu.Lock(t.ID)
	t.sleepCond.WaitTimeout(&t.sleepMu, t.ID, time.Duration(millis)*time.Millisecond)
	t.sleepMu.Unlock(t.ID)
	if t.IsInterrupted() {
		t.interrupted.Store(false)
		return false
	}
	return true
}

// Backtrace snapshots the current frame chain, innermost first (spec.md
// §4.5, §6). Nothing in this package calls it: a Throw's trace is built by
// fillInStackTrace one frame per unwind step instead.
func (t *Thread) Backtrace() []TraceElement {
	trace := make([]TraceElement, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		trace = append(trace, TraceElement{
			Class:  f.Class.Name,
			Method: f.MethodName + f.Descriptor,
			Line:   f.LineNumber(),
		})
	}
	return trace
}
