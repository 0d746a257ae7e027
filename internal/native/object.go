package native

import (
	"fmt"
	"reflect"

	"github.com/mtanaka/corevm/internal/runtime"
)

func registerObjectNatives(r *Registry) {
	r.Register("java/lang/Object", "registerNatives", "()V", noop)

	r.Register("java/lang/Object", "hashCode", "()I", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		obj := args[0].Ref()
		if obj == nil {
			return runtime.Value{}, false, fmt.Errorf("native: Object.hashCode on null receiver")
		}
		hash := int32(reflect.ValueOf(obj).Pointer() & 0x7fffffff)
		return runtime.IntValue(hash), true, nil
	})

	r.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		obj := args[0].Ref()
		if obj == nil {
			return runtime.Value{}, false, fmt.Errorf("native: Object.getClass on null receiver")
		}
		mirror := env.Dictionary.MirrorOf(obj.Obj.Class())
		return runtime.RefValue(&runtime.Handle{Obj: mirror}), true, nil
	})

	waitNative := func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		h := args[0].Ref()
		if h == nil {
			return runtime.Value{}, false, fmt.Errorf("native: Object.wait on null receiver")
		}
		inst, ok := h.Obj.(*runtime.Instance)
		if !ok {
			return runtime.Value{}, false, nil
		}
		mu, cond := inst.Monitor()
		cond.Wait(mu, env.ThreadID)
		return runtime.Value{}, false, nil
	}
	r.Register("java/lang/Object", "wait", "()V", waitNative)
	r.Register("java/lang/Object", "wait", "(J)V", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		h := args[0].Ref()
		if h == nil {
			return runtime.Value{}, false, fmt.Errorf("native: Object.wait on null receiver")
		}
		inst, ok := h.Obj.(*runtime.Instance)
		if !ok {
			return runtime.Value{}, false, nil
		}
		millis := args[1].Long()
		mu, cond := inst.Monitor()
		if millis <= 0 {
			cond.Wait(mu, env.ThreadID)
		} else {
			cond.WaitTimeout(mu, env.ThreadID, durationMillis(millis))
		}
		return runtime.Value{}, false, nil
	})

	r.Register("java/lang/Object", "notify", "()V", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		return notifyOne(args)
	})
	r.Register("java/lang/Object", "notifyAll", "()V", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		return notifyAll(args)
	})
}

func notifyOne(args []runtime.Value) (runtime.Value, bool, error) {
	h := args[0].Ref()
	if h == nil {
		return runtime.Value{}, false, fmt.Errorf("native: Object.notify on null receiver")
	}
	if inst, ok := h.Obj.(*runtime.Instance); ok {
		mu, cond := inst.Monitor()
		cond.Signal(mu)
	}
	return runtime.Value{}, false, nil
}

func notifyAll(args []runtime.Value) (runtime.Value, bool, error) {
	h := args[0].Ref()
	if h == nil {
		return runtime.Value{}, false, fmt.Errorf("native: Object.notifyAll on null receiver")
	}
	if inst, ok := h.Obj.(*runtime.Instance); ok {
		mu, cond := inst.Monitor()
		cond.Broadcast(mu)
	}
	return runtime.Value{}, false, nil
}

func noop(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
	return runtime.Value{}, false, nil
}
