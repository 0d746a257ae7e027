package vm

import (
	"bytes"
	"testing"

	"github.com/mtanaka/corevm/internal/classfile"
	"github.com/mtanaka/corevm/internal/runtime"
)

// TestFibonacciRecursion exercises spec.md §8's literal Fibonacci scenario:
// static int fib(int n){return n<2?n:fib(n-1)+fib(n-2);} invoked with 10
// must return 55. Built the same hand-assembled way interp_test.go's other
// fixtures are, since this VM has no compiler to invoke.
func TestFibonacciRecursion(t *testing.T) {
	vm, dict := newTestVM(t)
	b := newPoolBuilder()
	fibIdx := b.methodref("Fib", "fib", "(I)I")

	// if (n >= 2) goto recurse; else return n;
	code := bytesOf(opIload0, opBipush, 2)
	code = append(code, opIfIcmpge, 0, 5) // -> recurse, relative to the ifIcmpge opcode's own address
	code = append(code, opIload0, opIreturn)
	// recurse: return fib(n-1) + fib(n-2);
	code = append(code, opIload0, opIconst1, opIsub)
	code = append(code, opInvokestatic, byte(fibIdx>>8), byte(fibIdx))
	code = append(code, opIload0, opIconst2, opIsub)
	code = append(code, opInvokestatic, byte(fibIdx>>8), byte(fibIdx))
	code = append(code, opIadd, opIreturn)

	m := method("fib", "(I)I", true, 1, 3, code)
	cls := linkClass(t, dict, b, "Fib", "", nil, []classfile.MethodInfo{m})

	th := vm.mainThread()
	ret, err := th.invoke(cls, &cls.File.Methods[0], []runtime.Value{runtime.IntValue(10)})
	if err != nil {
		t.Fatalf("invoke fib(10): %v", err)
	}
	if ret.Int() != 55 {
		t.Errorf("fib(10): got %d, want 55", ret.Int())
	}
}

// TestPolymorphicDispatch exercises spec.md §8's literal polymorphism
// scenario: class A{int f(){return 1;}} class B extends A{int f(){return
// 2;}} A x=new B(); x.f(); must return 2 — invokevirtual resolves against
// the receiver's concrete class, not the static type of the reference at
// the call site.
func TestPolymorphicDispatch(t *testing.T) {
	vm, dict := newTestVM(t)

	aB := newPoolBuilder()
	aMethod := method("f", "()I", false, 1, 1, bytesOf(opIconst1, opIreturn))
	linkClass(t, dict, aB, "A", "", nil, []classfile.MethodInfo{aMethod})

	bB := newPoolBuilder()
	bFMethod := method("f", "()I", false, 1, 1, bytesOf(opIconst2, opIreturn))
	bCtor := method("<init>", "()V", false, 1, 1, bytesOf(opReturn))
	linkClass(t, dict, bB, "B", "A", nil, []classfile.MethodInfo{bCtor, bFMethod})

	callerB := newPoolBuilder()
	newIdx := callerB.class("B")
	ctorIdx := callerB.methodref("B", "<init>", "()V")
	fIdx := callerB.methodref("A", "f", "()I")
	code := bytesOf(opNew, 0, 0)
	code[1], code[2] = byte(newIdx>>8), byte(newIdx)
	code = append(code, opDup)
	code = append(code, opInvokespecial, byte(ctorIdx>>8), byte(ctorIdx))
	code = append(code, opInvokevirtual, byte(fIdx>>8), byte(fIdx))
	code = append(code, opIreturn)

	callerMethod := method("call", "()I", true, 0, 3, code)
	callerCls := linkClass(t, dict, callerB, "Caller", "", nil, []classfile.MethodInfo{callerMethod})

	th := vm.mainThread()
	ret, err := th.invoke(callerCls, &callerCls.File.Methods[0], nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if ret.Int() != 2 {
		t.Errorf("x.f(): got %d, want 2 (B's override should win)", ret.Int())
	}
}

// TestHelloWorldPrintsToStdout exercises spec.md §8's literal HelloWorld
// scenario end to end: getstatic java/lang/System.out, ldc a string
// constant, invokevirtual println(Ljava/lang/String;)V, and confirm the
// bytes actually land on the VM's configured Stdout.
func TestHelloWorldPrintsToStdout(t *testing.T) {
	vm, dict := newTestVM(t)
	var out bytes.Buffer
	vm.Stdout = &out

	b := newPoolBuilder()
	sysOut := b.fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	msg := b.string("Hello, world!")
	printlnIdx := b.methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")

	code := bytesOf(opGetstatic, 0, 0)
	code[1], code[2] = byte(sysOut>>8), byte(sysOut)
	code = append(code, opLdc, byte(msg))
	code = append(code, opInvokevirtual, byte(printlnIdx>>8), byte(printlnIdx))
	code = append(code, opReturn)

	m := method("main", "()V", true, 0, 2, code)
	cls := linkClass(t, dict, b, "Hello", "", nil, []classfile.MethodInfo{m})

	th := vm.mainThread()
	if _, err := th.invoke(cls, &cls.File.Methods[0], nil); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := out.String(); got != "Hello, world!\n" {
		t.Errorf("stdout: got %q, want %q", got, "Hello, world!\n")
	}
}
