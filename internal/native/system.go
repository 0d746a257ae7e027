package native

import (
	"fmt"
	"time"

	"github.com/mtanaka/corevm/internal/runtime"
)

func durationMillis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

func registerSystemNatives(r *Registry) {
	r.Register("java/lang/System", "registerNatives", "()V", noop)
	r.Register("java/lang/System", "setOut0", "(Ljava/io/PrintStream;)V", noop)
	r.Register("java/lang/System", "setErr0", "(Ljava/io/PrintStream;)V", noop)

	r.Register("java/lang/System", "currentTimeMillis", "()J", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		return runtime.LongValue(time.Now().UnixMilli()), true, nil
	})
	r.Register("java/lang/System", "nanoTime", "()J", func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		return runtime.LongValue(time.Now().UnixNano()), true, nil
	})

	r.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			return runtime.Value{}, false, arraycopy(args)
		})
}

// arraycopy implements System.arraycopy for both primitive (TypeArray) and
// reference (ObjArray) arrays, per spec.md §4.6.
func arraycopy(args []runtime.Value) error {
	src, dst := args[0], args[2]
	srcPos, dstPos, length := int(args[1].Int()), int(args[3].Int()), int(args[4].Int())

	if src.IsNull() || dst.IsNull() {
		return newThrowable("java/lang/NullPointerException", "")
	}

	switch s := src.Ref().Obj.(type) {
	case *runtime.TypeArray:
		d, ok := dst.Ref().Obj.(*runtime.TypeArray)
		if !ok {
			return newThrowable("java/lang/ArrayStoreException", "")
		}
		if srcPos < 0 || dstPos < 0 || length < 0 || srcPos+length > len(s.Elems) || dstPos+length > len(d.Elems) {
			return newThrowable("java/lang/ArrayIndexOutOfBoundsException", "")
		}
		copy(d.Elems[dstPos:dstPos+length], s.Elems[srcPos:srcPos+length])
	case *runtime.ObjArray:
		d, ok := dst.Ref().Obj.(*runtime.ObjArray)
		if !ok {
			return newThrowable("java/lang/ArrayStoreException", "")
		}
		if srcPos < 0 || dstPos < 0 || length < 0 || srcPos+length > len(s.Elems) || dstPos+length > len(d.Elems) {
			return newThrowable("java/lang/ArrayIndexOutOfBoundsException", "")
		}
		copy(d.Elems[dstPos:dstPos+length], s.Elems[srcPos:srcPos+length])
	default:
		return fmt.Errorf("native: System.arraycopy: source is not an array")
	}
	return nil
}

// throwable is a lightweight carrier used only inside package native to
// signal that a Go error should surface as a Java exception of a given
// class; package vm's invoke path type-asserts for it and rebuilds a real
// *vm.Throw (keeping package native free of any import on package vm).
type throwable struct {
	class   string
	message string
}

func (t *throwable) Error() string {
	if t.message == "" {
		return t.class
	}
	return t.class + ": " + t.message
}

func newThrowable(class, message string) error {
	return &throwable{class: class, message: message}
}

// ThrowableClassAndMessage lets package vm recover the (class, message)
// pair from an error a native returned, if it is one of ours.
func ThrowableClassAndMessage(err error) (class, message string, ok bool) {
	t, ok := err.(*throwable)
	if !ok {
		return "", "", false
	}
	return t.class, t.message, true
}
