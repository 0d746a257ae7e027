package native

import (
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/mtanaka/corevm/internal/runtime"
)

// registerPrintStreamNatives wires java/io/PrintStream's println/print/write
// family straight to the Env's configured Stdout/Stderr, the same job the
// teacher's pkg/native PrintStream.Println does by holding an io.Writer
// directly — this VM instead stashes which stream a given PrintStream
// instance names on a synthetic "fd" instance field (0 stdout, 1 stderr),
// the same fd-on-the-instance idiom registerFileInputStreamNatives already
// uses, since one native Func here has to serve both System.out and
// System.err.
func registerPrintStreamNatives(r *Registry) {
	for _, descriptor := range []string{
		"()V", "(I)V", "(J)V", "(D)V", "(F)V", "(Z)V", "(C)V",
		"(Ljava/lang/String;)V", "(Ljava/lang/Object;)V",
	} {
		d := descriptor
		r.Register("java/io/PrintStream", "println", d, printlnNative(d))
		r.Register("java/io/PrintStream", "print", d, printNative(d))
	}

	r.Register("java/io/PrintStream", "write", "(I)V",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			w := streamWriter(env, args[0].Ref())
			_, err := w.Write([]byte{byte(args[1].Int())})
			return runtime.Value{}, false, err
		})
	r.Register("java/io/PrintStream", "write", "([B)V", writeBytesNative)
	r.Register("java/io/PrintStream", "write", "([BII)V", writeBytesRangeNative)
	r.Register("java/io/PrintStream", "flush", "()V", noop)
}

func printlnNative(descriptor string) Func {
	body := printNative(descriptor)
	return func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		if ret, hasReturn, err := body(env, args); err != nil {
			return ret, hasReturn, err
		}
		_, err := streamWriter(env, args[0].Ref()).Write([]byte{'\n'})
		return runtime.Value{}, false, err
	}
}

func printNative(descriptor string) Func {
	return func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
		w := streamWriter(env, args[0].Ref())
		if descriptor == "()V" {
			return runtime.Value{}, false, nil
		}
		s, err := formatPrintArg(descriptor, args[1])
		if err != nil {
			return runtime.Value{}, false, err
		}
		_, err = fmt.Fprint(w, s)
		return runtime.Value{}, false, err
	}
}

// formatPrintArg renders a single println/print argument the way
// java.io.PrintStream's overload set does for each primitive and the two
// reference descriptors this VM supports passing to it.
func formatPrintArg(descriptor string, v runtime.Value) (string, error) {
	switch descriptor {
	case "(I)V":
		return strconv.FormatInt(int64(v.Int()), 10), nil
	case "(J)V":
		return strconv.FormatInt(v.Long(), 10), nil
	case "(D)V":
		return strconv.FormatFloat(v.Double(), 'g', -1, 64), nil
	case "(F)V":
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32), nil
	case "(Z)V":
		if v.Int() != 0 {
			return "true", nil
		}
		return "false", nil
	case "(C)V":
		return string(rune(v.Int())), nil
	case "(Ljava/lang/String;)V":
		if v.IsNull() {
			return "null", nil
		}
		s, ok := ExtractString(v)
		if !ok {
			return "", fmt.Errorf("native: PrintStream: argument is not a java/lang/String")
		}
		return s, nil
	case "(Ljava/lang/Object;)V":
		if v.IsNull() {
			return "null", nil
		}
		if s, ok := ExtractString(v); ok {
			return s, nil
		}
		hash := reflect.ValueOf(v.Ref()).Pointer() & 0x7fffffff
		return fmt.Sprintf("%s@%x", v.Ref().Obj.Class().Name, hash), nil
	default:
		return "", fmt.Errorf("native: PrintStream: unsupported descriptor %s", descriptor)
	}
}

func writeBytesNative(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
	arr, ok := args[1].Ref().Obj.(*runtime.TypeArray)
	if !ok {
		return runtime.Value{}, false, fmt.Errorf("native: PrintStream.write: not a byte[]")
	}
	return runtime.Value{}, false, writeElems(env, args[0].Ref(), arr.Elems)
}

func writeBytesRangeNative(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
	arr, ok := args[1].Ref().Obj.(*runtime.TypeArray)
	if !ok {
		return runtime.Value{}, false, fmt.Errorf("native: PrintStream.write: not a byte[]")
	}
	off, length := int(args[2].Int()), int(args[3].Int())
	if off < 0 || length < 0 || off+length > len(arr.Elems) {
		return runtime.Value{}, false, newThrowable("java/lang/IndexOutOfBoundsException", "")
	}
	return runtime.Value{}, false, writeElems(env, args[0].Ref(), arr.Elems[off:off+length])
}

func writeElems(env *Env, receiver *runtime.Handle, elems []runtime.Value) error {
	buf := make([]byte, len(elems))
	for i, v := range elems {
		buf[i] = byte(v.Int())
	}
	_, err := streamWriter(env, receiver).Write(buf)
	return err
}

// streamWriter resolves a PrintStream instance to the Env's stdout or
// stderr writer based on its "fd" field (0 stdout, 1 stderr; these tags are
// not the unix descriptor numbers 1 and 2), set up once at VM construction time for the two singleton
// System.out/System.err instances.
func streamWriter(env *Env, h *runtime.Handle) io.Writer {
	inst, ok := h.Obj.(*runtime.Instance)
	if !ok {
		return env.Stdout
	}
	if f, ok := inst.Class().FindInstanceField("fd", "I"); ok && inst.GetField(f.Index).Int() == 1 {
		return env.Stderr
	}
	return env.Stdout
}
