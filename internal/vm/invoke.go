package vm

import (
	"github.com/mtanaka/corevm/internal/classfile"
	"github.com/mtanaka/corevm/internal/native"
	"github.com/mtanaka/corevm/internal/runtime"
)

// ensureInitialized runs class's <clinit> if it has not already run,
// recursively initializing its superclass first, per spec.md §4.3's
// ordering requirement: "a class's superclass is fully initialized before
// the class itself." Array classes are created already Initialized by
// Dictionary.ArrayClass; a class with no <clinit> of its own still moves
// from Linked through Initializing to Initialized here.
func (t *Thread) ensureInitialized(class *runtime.Class) (bool, error) {
	if class == nil || class.IsArray() {
		return false, nil
	}
	if class.Super != nil {
		if _, err := t.ensureInitialized(class.Super); err != nil {
			return false, err
		}
	}
	run, err := class.BeginInitialization(t.ID)
	if err != nil || !run {
		return false, err
	}

	var clinitErr error
	if declClass, method, ok := class.FindMethod("<clinit>", "()V"); ok && declClass == class && method.Code != nil {
		_, clinitErr = t.invoke(class, method, nil)
	}
	class.FinishInitialization(t.ID, clinitErr)
	return true, clinitErr
}

// invoke pushes a new activation record for method, runs it to completion
// (native dispatch or the bytecode loop), and pops the frame — the single
// call path every invoke* opcode, Thread.start's run() dispatch, and
// ensureInitialized's <clinit> call all funnel through, so frame-depth
// accounting and synchronized-method locking live in exactly one place.
func (t *Thread) invoke(class *runtime.Class, method *classfile.MethodInfo, args []runtime.Value) (runtime.Value, error) {
	if t.Depth() >= maxFrameDepth {
		return runtime.Value{}, t.newThrow("java/lang/StackOverflowError", "")
	}

	if method.IsNative() {
		env := t.nativeEnv()
		ret, hasReturn, err := t.vm.Natives.Call(env, class.Name, method.Name, method.Descriptor, args)
		if err != nil {
			if excClass, msg, ok := native.ThrowableClassAndMessage(err); ok {
				return runtime.Value{}, t.newThrow(excClass, msg)
			}
			return runtime.Value{}, err
		}
		if !hasReturn {
			return runtime.Value{}, nil
		}
		return ret, nil
	}

	if method.Code == nil {
		return runtime.Value{}, t.AbstractMethodError(class.Name + "." + method.Name + method.Descriptor)
	}

	mu, unlock := t.acquireMonitorIfSynchronized(class, method, args)
	if unlock {
		defer mu.Unlock(t.ID)
	}

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Code, class, method)
	for i, a := range args {
		if i >= len(frame.Locals) {
			break
		}
		frame.SetLocal(i, a)
	}

	t.pushFrame(frame)
	defer t.popFrame()

	return t.executeLoop(frame)
}

// acquireMonitorIfSynchronized implements spec.md §4.4's "synchronized-method
// auto-acquire/release on every exit path including exceptional": a static
// synchronized method locks the declaring class's Class-mirror monitor, an
// instance synchronized method locks the receiver's. The caller defers the
// Unlock so it fires on every return path, including a propagated *Throw.
func (t *Thread) acquireMonitorIfSynchronized(class *runtime.Class, method *classfile.MethodInfo, args []runtime.Value) (mu *monitorHandle, locked bool) {
	if method.AccessFlags&classfile.AccSynchronized == 0 {
		return nil, false
	}
	h := &monitorHandle{}
	if method.IsStatic() {
		mirror := t.vm.Dictionary.MirrorOf(class)
		h.m, _ = mirror.Monitor()
	} else if len(args) > 0 {
		if inst, ok := args[0].Ref().Obj.(*runtime.Instance); ok {
			h.m, _ = inst.Monitor()
		}
	}
	if h.m == nil {
		return nil, false
	}
	h.m.Lock(t.ID)
	return h, true
}

// monitorHandle lets acquireMonitorIfSynchronized return a single
// lock/unlock handle regardless of whether it came from a Mirror or an
// Instance, both of which expose Monitor() identically.
type monitorHandle struct {
	m interface {
		Lock(int64)
		Unlock(int64)
	}
}

func (h *monitorHandle) Unlock(id int64) { h.m.Unlock(id) }
