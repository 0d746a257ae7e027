package native

import "github.com/mtanaka/corevm/internal/runtime"

func registerThreadNatives(r *Registry) {
	r.Register("java/lang/Thread", "registerNatives", "()V", noop)
	r.Register("java/lang/Thread", "setPriority0", "(I)V", noop)
	r.Register("java/lang/Thread", "setPriority", "(I)V", noop)

	r.Register("java/lang/Thread", "isAlive", "()Z", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		return runtime.BoolValue(env.IsAlive(env.ThreadID)), true, nil
	})

	r.Register("java/lang/Thread", "interrupt0", "()V", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		env.Interrupt(env.ThreadID)
		return runtime.Value{}, false, nil
	})

	r.Register("java/lang/Thread", "isInterrupted", "(Z)Z", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		return runtime.BoolValue(env.IsInterrupted(env.ThreadID)), true, nil
	})

	r.Register("java/lang/Thread", "sleep", "(J)V", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		millis := args[0].Long()
		if !env.Sleep(millis) {
			return runtime.Value{}, false, newThrowable("java/lang/InterruptedException", "sleep interrupted")
		}
		return runtime.Value{}, false, nil
	})

	r.Register("java/lang/Thread", "start0", "()V", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		receiver := args[0].Ref()
		inst, ok := receiver.Obj.(*runtime.Instance)
		if !ok {
			return runtime.Value{}, false, nil
		}
		class := inst.Class()
		env.SpawnThread("Thread", func(threadID int64) {
			// run() is invoked with this same receiver so subclasses
			// overriding run() dispatch correctly; the execution engine's
			// invoke path resolves it virtually.
			_, _ = env.Invoke(class, "run", "()V", []runtime.Value{runtime.RefValue(receiver)})
		})
		return runtime.Value{}, false, nil
	})
}
