package vm

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mtanaka/corevm/internal/native"
	"github.com/mtanaka/corevm/internal/runtime"
)

// maxFrameDepth bounds recursion the same way the teacher's VM does,
// turning runaway Java recursion into a catchable StackOverflowError
// instead of an unbounded Go goroutine stack (spec.md §4.4).
const maxFrameDepth = 2048

// VM is the virtual machine: one Dictionary shared by every Thread, a
// native method registry, and the thread group backing Thread.start.
// Generalizes the teacher's single-ClassLoader, no-thread VM.
type VM struct {
	Dictionary *runtime.Dictionary
	Natives    *native.Registry
	Strings    *native.StringPool
	Stdout     io.Writer
	Stderr     io.Writer

	stdoutStream *runtime.Handle
	stderrStream *runtime.Handle

	threads *ThreadGroup
	nextTID int64

	threadsMu sync.Mutex
	threadsByID map[int64]*Thread
}

// New builds a VM over the given dictionary with the standard native
// surface registered (spec.md §4.6).
func New(dict *runtime.Dictionary) *VM {
	vm := &VM{
		Dictionary:  dict,
		Natives:     native.NewRegistry(),
		Strings:     native.NewStringPool(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		threadsByID: make(map[int64]*Thread),
	}
	vm.threads = NewThreadGroup(vm)
	native.RegisterStandardLibrary(vm.Natives)
	vm.stdoutStream, vm.stderrStream = registerBuiltinIOClasses(dict)
	return vm
}

// mainThread constructs the Thread that runs main().
func (vm *VM) mainThread() *Thread {
	vm.nextTID++
	th := &Thread{ID: vm.nextTID, Name: "main", vm: vm}
	vm.registerThread(th)
	return th
}

// registerThread/lookupThread back the (threadID -> *Thread) map the
// native.Env bridge needs for Thread.isAlive/interrupt/isInterrupted, since
// those natives address an arbitrary java/lang/Thread, not necessarily the
// calling thread (spec.md §4.6, §4.7).
func (vm *VM) registerThread(th *Thread) {
	vm.threadsMu.Lock()
	defer vm.threadsMu.Unlock()
	vm.threadsByID[th.ID] = th
}

func (vm *VM) lookupThread(id int64) *Thread {
	vm.threadsMu.Lock()
	defer vm.threadsMu.Unlock()
	return vm.threadsByID[id]
}

// Execute loads mainClassName, resolves its
// main([Ljava/lang/String;)V method, and runs it to completion on a fresh
// main thread, returning any uncaught exception as a *Throw.
func (vm *VM) Execute(mainClassName string, args []string) error {
	class, err := vm.Dictionary.Load(mainClassName)
	if err != nil {
		return err
	}

	th := vm.mainThread()
	th.alive.Store(true)
	defer th.alive.Store(false)

	declClass, method, ok := class.FindMethod("main", "([Ljava/lang/String;)V")
	if !ok {
		return fmt.Errorf("vm: no main([Ljava/lang/String;)V in %s", mainClassName)
	}

	if _, err := th.ensureInitialized(class); err != nil {
		return err
	}

	argsArray := vm.buildStringArray(args)
	_, err = th.invoke(declClass, method, []runtime.Value{runtime.RefValue(argsArray)})
	return err
}

func (vm *VM) buildStringArray(args []string) *runtime.Handle {
	arrClass := vm.Dictionary.ArrayClass("[Ljava/lang/String;")
	arr := runtime.NewObjArray(arrClass, "java/lang/String", len(args))
	for i, s := range args {
		arr.Elems[i] = native.NewJavaString(vm.Dictionary, s)
	}
	return &runtime.Handle{Obj: arr}
}
