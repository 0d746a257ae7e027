// Package vm implements the execution engine spec.md §4.4 describes: the
// per-call Frame, the per-goroutine Thread, and the bytecode interpreter
// dispatch loop. It generalizes the teacher's pkg/vm (Frame, VM,
// instructions.go) to the full runtime.Value set and to the runtime
// package's linked Class/Dictionary instead of a bare ClassLoader.
package vm

import (
	"fmt"
	"sync/atomic"

	"github.com/mtanaka/corevm/internal/classfile"
	"github.com/mtanaka/corevm/internal/runtime"
)

// Frame is one method-invocation activation record: a local-variable array
// sized to the method's max_locals, an operand stack capped at max_stack,
// and a program counter. PC is kept in an atomic so a concurrent backtrace
// walk (triggered by another thread, or by this thread's own
// fillInStackTrace while unwinding) can read a consistent snapshot without
// racing the interpreter loop that owns and advances it (spec.md §4.5, §9's
// interior-mutability requirement) — every other field is written only by
// the owning goroutine and read by others only after the frame has stopped
// changing (i.e. during unwind), matching the teacher's plain-field Frame
// but safe under -race for the one field that genuinely is read
// concurrently.
type Frame struct {
	Locals []runtime.Value
	stack  []runtime.Value
	sp     int

	Code   []byte
	pc     atomic.Int32
	Class  *runtime.Class
	Method *classfile.MethodInfo

	// MethodName/Descriptor duplicate Method's fields for cheap access from
	// a concurrent backtrace reader without dereferencing Method.
	MethodName string
	Descriptor string
}

// NewFrame allocates a Frame sized for the given method.
func NewFrame(maxLocals, maxStack uint16, code []byte, class *runtime.Class, method *classfile.MethodInfo) *Frame {
	return &Frame{
		Locals:     make([]runtime.Value, maxLocals),
		stack:      make([]runtime.Value, maxStack),
		Code:       code,
		Class:      class,
		Method:     method,
		MethodName: method.Name,
		Descriptor: method.Descriptor,
	}
}

func (f *Frame) PC() int     { return int(f.pc.Load()) }
func (f *Frame) SetPC(v int) { f.pc.Store(int32(v)) }

// Push pushes a value onto the operand stack. Overflow panics: spec.md §7
// treats a stack depth violation as interpreter corruption, not a
// recoverable condition, matching the teacher's Frame.Push.
func (f *Frame) Push(v runtime.Value) {
	if f.sp >= len(f.stack) {
		panic(fmt.Sprintf("vm: operand stack overflow in %s%s: sp=%d max=%d", f.MethodName, f.Descriptor, f.sp, len(f.stack)))
	}
	f.stack[f.sp] = v
	f.sp++
}

// Pop pops the top operand. Underflow panics for the same reason Push's
// overflow does.
func (f *Frame) Pop() runtime.Value {
	if f.sp <= 0 {
		panic(fmt.Sprintf("vm: operand stack underflow in %s%s", f.MethodName, f.Descriptor))
	}
	f.sp--
	return f.stack[f.sp]
}

func (f *Frame) ClearStack() { f.sp = 0 }
func (f *Frame) Depth() int  { return f.sp }

func (f *Frame) GetLocal(index int) runtime.Value {
	if index < 0 || index >= len(f.Locals) {
		panic(fmt.Sprintf("vm: local variable index %d out of range (max %d)", index, len(f.Locals)))
	}
	return f.Locals[index]
}

func (f *Frame) SetLocal(index int, v runtime.Value) {
	if index < 0 || index >= len(f.Locals) {
		panic(fmt.Sprintf("vm: local variable index %d out of range (max %d)", index, len(f.Locals)))
	}
	f.Locals[index] = v
}

// Operand-fetch helpers, reading from Code at the current PC and advancing
// it, matching the teacher's ReadU8/ReadI8/ReadU16/ReadI16 family.
func (f *Frame) readU8() uint8 {
	v := f.Code[f.PC()]
	f.SetPC(f.PC() + 1)
	return v
}

func (f *Frame) readI8() int8 { return int8(f.readU8()) }

func (f *Frame) readU16() uint16 {
	hi := f.Code[f.PC()]
	lo := f.Code[f.PC()+1]
	f.SetPC(f.PC() + 2)
	return uint16(hi)<<8 | uint16(lo)
}

func (f *Frame) readI16() int16 { return int16(f.readU16()) }

func (f *Frame) readI32() int32 {
	b0, b1, b2, b3 := f.Code[f.PC()], f.Code[f.PC()+1], f.Code[f.PC()+2], f.Code[f.PC()+3]
	f.SetPC(f.PC() + 4)
	return int32(uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8 | uint32(b3))
}

// LineNumber reports the source line covering the current PC, for
// backtrace construction (spec.md §4.5).
func (f *Frame) LineNumber() int {
	if f.Method == nil || f.Method.Code == nil {
		return 0
	}
	return f.Method.Code.LineForPC(f.PC())
}
