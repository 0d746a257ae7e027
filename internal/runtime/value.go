// Package runtime implements the object model and class metadata spec.md §3
// and §4.3 describe: a tagged Value union, the Instance/array/Mirror handle
// hierarchy, and the Class descriptor a linked class file becomes. It plays
// the role the teacher's pkg/vm.Value/JObject pair plays, generalized to the
// full set of JVM primitive kinds and to a real inheritance-aware field
// layout instead of a flat string-keyed map.
package runtime

// Kind identifies which arm of a Value is populated.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Value is one operand-stack slot, local-variable slot, field value, or
// array element. Sub-integral Java types (byte, short, char, boolean) are
// carried as KindInt, exactly as the JVM spec collapses them on the operand
// stack; narrowing happens only at field/array store time.
type Value struct {
	kind Kind
	i    int64 // backs KindInt (truncated to int32) and KindLong
	f    float64
	ref  *Handle
}

func IntValue(v int32) Value    { return Value{kind: KindInt, i: int64(v)} }
func LongValue(v int64) Value   { return Value{kind: KindLong, i: v} }
func FloatValue(v float32) Value{ return Value{kind: KindFloat, f: float64(v)} }
func DoubleValue(v float64) Value { return Value{kind: KindDouble, f: v} }
func RefValue(h *Handle) Value  { return Value{kind: KindRef, ref: h} }
func NullValue() Value          { return Value{kind: KindNull} }

// BoolValue is a convenience constructor; the result is KindInt on the
// stack.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull || (v.kind == KindRef && v.ref == nil) }

// Int returns the int32 payload. Panics if Kind is not KindInt: a mismatch
// here means the interpreter's own stack-typing is wrong, spec.md §7's
// invariant-violation panic case.
func (v Value) Int() int32 {
	if v.kind != KindInt {
		panic("runtime: Value.Int called on non-int Value (kind=" + v.kind.String() + ")")
	}
	return int32(v.i)
}

func (v Value) Long() int64 {
	if v.kind != KindLong {
		panic("runtime: Value.Long called on non-long Value (kind=" + v.kind.String() + ")")
	}
	return v.i
}

func (v Value) Float() float32 {
	if v.kind != KindFloat {
		panic("runtime: Value.Float called on non-float Value (kind=" + v.kind.String() + ")")
	}
	return float32(v.f)
}

func (v Value) Double() float64 {
	if v.kind != KindDouble {
		panic("runtime: Value.Double called on non-double Value (kind=" + v.kind.String() + ")")
	}
	return v.f
}

// Ref returns the handle payload, or nil for a null reference (whether
// KindNull or a KindRef holding a nil *Handle).
func (v Value) Ref() *Handle {
	if v.kind != KindRef && v.kind != KindNull {
		panic("runtime: Value.Ref called on non-reference Value (kind=" + v.kind.String() + ")")
	}
	return v.ref
}

// ZeroValue returns the JVM default value for a field/array-element
// descriptor's first character, per spec.md §4.3's default-field-value rule.
func ZeroValue(descriptor string) Value {
	if len(descriptor) == 0 {
		return NullValue()
	}
	switch descriptor[0] {
	case 'J':
		return LongValue(0)
	case 'F':
		return FloatValue(0)
	case 'D':
		return DoubleValue(0)
	case 'L', '[':
		return NullValue()
	default: // B, C, I, S, Z
		return IntValue(0)
	}
}
