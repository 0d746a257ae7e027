package vm

import (
	"fmt"

	"github.com/mtanaka/corevm/internal/runtime"
)

// Throw carries a Java exception object being propagated as a Go error, the
// vehicle spec.md §4.5 and §7 require so the interpreter's call chain keeps
// composing with ordinary Go error returns while still letting callers
// distinguish "the Java program threw" from "the VM itself is broken"
// (errors.As target), generalizing the teacher's bare *JavaException.
type Throw struct {
	Object  *runtime.Handle
	Message string
	// Trace is filled in by fillInStackTrace as the exception unwinds
	// (spec.md §4.5); each entry is one "at Class.method(Line)" frame.
	Trace []TraceElement
}

// TraceElement is one entry of a synthesized Java backtrace.
type TraceElement struct {
	Class  string
	Method string
	Line   int
}

func (t *Throw) Error() string {
	className := "<unknown>"
	if t.Object != nil && t.Object.Obj != nil {
		className = t.Object.Obj.Class().Name
	}
	if t.Message != "" {
		return fmt.Sprintf("%s: %s", className, t.Message)
	}
	return className
}

// newThrow builds a Throw for className, loading (or synthesizing, if the
// classpath lacks it) the exception class and constructing a bare instance.
// message is stashed on the Throw directly; this VM does not require a
// full java.lang.Throwable field layout to exist for its own internal
// faults (NullPointerException, ArithmeticException, ...) to be throwable,
// matching spec.md §9's allowance for a minimal Throwable shape.
func (t *Thread) newThrow(className, message string) *Throw {
	class, ok := t.vm.Dictionary.Find(className)
	if !ok {
		var err error
		class, err = t.vm.Dictionary.Load(className)
		if err != nil {
			class = t.vm.Dictionary.ArrayClass("L" + className + ";") // cheap synthesized stand-in
		}
	}
	obj := runtime.NewInstance(class)
	return &Throw{Object: &runtime.Handle{Obj: obj}, Message: message}
}

func (t *Thread) NullPointerException(msg string) *Throw {
	return t.newThrow("java/lang/NullPointerException", msg)
}

func (t *Thread) ArithmeticException(msg string) *Throw {
	return t.newThrow("java/lang/ArithmeticException", msg)
}

func (t *Thread) ArrayIndexOutOfBoundsException(msg string) *Throw {
	return t.newThrow("java/lang/ArrayIndexOutOfBoundsException", msg)
}

func (t *Thread) NegativeArraySizeException(msg string) *Throw {
	return t.newThrow("java/lang/NegativeArraySizeException", msg)
}

func (t *Thread) ClassCastException(msg string) *Throw {
	return t.newThrow("java/lang/ClassCastException", msg)
}

func (t *Thread) ArrayStoreException(msg string) *Throw {
	return t.newThrow("java/lang/ArrayStoreException", msg)
}

func (t *Thread) NoSuchMethodError(msg string) *Throw {
	return t.newThrow("java/lang/NoSuchMethodError", msg)
}

func (t *Thread) NoSuchFieldError(msg string) *Throw {
	return t.newThrow("java/lang/NoSuchFieldError", msg)
}

func (t *Thread) AbstractMethodError(msg string) *Throw {
	return t.newThrow("java/lang/AbstractMethodError", msg)
}

// fillInStackTrace records one frame of the unwind path onto a Throw. The
// execution loop calls this once per frame as a thrown exception propagates
// up, bottom-to-top in call order (so Trace ends up innermost-first,
// matching java.lang.Throwable.printStackTrace's order), per spec.md §4.5.
func (t *Throw) fillInStackTrace(f *Frame) {
	t.Trace = append(t.Trace, TraceElement{
		Class:  f.Class.Name,
		Method: f.MethodName + f.Descriptor,
		Line:   f.LineNumber(),
	})
}
