// Package native implements the native method registry spec.md §4.6
// describes: a (class, name, descriptor) -> Func table bound at link time
// to any ACC_NATIVE method, plus the minimal java.* surface spec.md §4.6
// and §6 require. It deliberately has no import of package vm — every
// native needs only the small Env capability struct built fresh by the
// caller for each invocation, the same separation the teacher keeps
// between pkg/native (PrintStream) and pkg/vm (everything that calls it).
package native

import (
	"io"

	"github.com/mtanaka/corevm/internal/runtime"
)

// Env is the capability set a native method body may use: the process-wide
// class dictionary, the VM's configured stdout/stderr, this call's owning
// thread id, and the handful of callbacks that need the execution engine
// (invoking a Java method, spawning a thread, parking the calling thread)
// rather than anything package native can do on its own.
type Env struct {
	Dictionary *runtime.Dictionary
	Stdout     io.Writer
	Stderr     io.Writer
	Strings    *StringPool

	ThreadID int64

	// Invoke calls a Java method by declaring class/name/descriptor with
	// the given arguments (receiver included for instance methods), the
	// same resolve-then-execute path invokevirtual/invokestatic use.
	Invoke func(class *runtime.Class, methodName, descriptor string, args []runtime.Value) (runtime.Value, error)

	// Sleep parks the calling thread for millis, returning early (with ok
	// false) if the thread is interrupted meanwhile.
	Sleep func(millis int64) (ok bool)

	// SpawnThread starts body in a new goroutine registered with the VM's
	// thread group, used by Thread.start0.
	SpawnThread func(name string, body func(threadID int64))

	IsInterrupted func(threadID int64) bool
	Interrupt     func(threadID int64)
	IsAlive       func(threadID int64) bool
}
