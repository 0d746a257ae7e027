package vm

import (
	"github.com/mtanaka/corevm/internal/classfile"
	"github.com/mtanaka/corevm/internal/runtime"
)

// builtinPoolBuilder assembles the tiny hand-rolled constant pool the
// synthesized PrintStream class below needs to name itself and its field —
// the production-code counterpart of interp_test.go's poolBuilder, used here
// because java/io/PrintStream is a VM-intrinsic class with no .class bytes
// on any classpath (spec.md §4.6: System.out/err are a native bridge point,
// not a field store a real classfile backs).
type builtinPoolBuilder struct {
	pool []classfile.ConstantPoolEntry
}

func newBuiltinPoolBuilder() *builtinPoolBuilder {
	return &builtinPoolBuilder{pool: []classfile.ConstantPoolEntry{nil}}
}

func (b *builtinPoolBuilder) utf8(s string) uint16 {
	b.pool = append(b.pool, &classfile.ConstantUtf8{Value: s})
	return uint16(len(b.pool) - 1)
}

func (b *builtinPoolBuilder) class(name string) uint16 {
	idx := b.utf8(name)
	b.pool = append(b.pool, &classfile.ConstantClass{NameIndex: idx})
	return uint16(len(b.pool) - 1)
}

// registerBuiltinIOClasses links a synthetic java/io/PrintStream class into
// dict and returns Handles to its two singleton instances, the values
// execGetstatic's java/lang/System.out/.err special case (resolve.go) pushes.
// This VM has no FileOutputStream/FileDescriptor chain for a real
// java/lang/System.class's <clinit> to construct a PrintStream through, so
// the singletons are built directly, the same no-classfile-needed shortcut
// Dictionary.ArrayClass already uses for array types. java/lang/System
// itself is deliberately NOT synthesized here: its other statics
// (registerNatives, currentTimeMillis, arraycopy, ...) keep coming from
// whatever java/lang/System.class the embedder supplies on the classpath,
// matching how java/lang/Object, java/lang/Thread, and
// java/io/FileInputStream's natives are wired in this VM.
func registerBuiltinIOClasses(dict *runtime.Dictionary) (stdout, stderr *runtime.Handle) {
	psb := newBuiltinPoolBuilder()
	psThisClass := psb.class("java/io/PrintStream")
	psCF := &classfile.ClassFile{
		ConstantPool: psb.pool,
		ThisClass:    psThisClass,
		Fields: []classfile.FieldInfo{
			{Name: "fd", Descriptor: "I"},
		},
		Methods: printStreamNativeMethods(),
	}
	psClass, err := dict.Link(psCF)
	if err != nil {
		panic("vm: linking synthetic java/io/PrintStream: " + err.Error())
	}
	dict.Put(psClass)

	mkStream := func(fd int32) *runtime.Handle {
		inst := runtime.NewInstance(psClass)
		f, _ := psClass.FindInstanceField("fd", "I")
		inst.SetField(f.Index, runtime.IntValue(fd))
		return &runtime.Handle{Obj: inst}
	}
	stdout = mkStream(0)
	stderr = mkStream(1)
	return stdout, stderr
}

// printStreamNativeMethods declares every println/print/write overload
// internal/native/printstream.go implements as ACC_NATIVE method_info
// entries, so the ordinary invoke() native-dispatch path (method.IsNative())
// reaches them with no special-casing in the interpreter or execInvoke.
func printStreamNativeMethods() []classfile.MethodInfo {
	descriptors := []string{
		"()V", "(I)V", "(J)V", "(D)V", "(F)V", "(Z)V", "(C)V",
		"(Ljava/lang/String;)V", "(Ljava/lang/Object;)V",
	}
	var methods []classfile.MethodInfo
	for _, d := range descriptors {
		methods = append(methods,
			nativeMethod("println", d),
			nativeMethod("print", d),
		)
	}
	methods = append(methods,
		nativeMethod("write", "(I)V"),
		nativeMethod("write", "([B)V"),
		nativeMethod("write", "([BII)V"),
		nativeMethod("flush", "()V"),
	)
	return methods
}

func nativeMethod(name, descriptor string) classfile.MethodInfo {
	return classfile.MethodInfo{
		Name:        name,
		Descriptor:  descriptor,
		AccessFlags: classfile.AccPublic | classfile.AccNative,
	}
}
