// Package classfile decodes the JVM class-file binary format into an
// in-memory AST. It performs no linking and no semantic validation beyond
// what is needed to produce a structurally sound tree; resolving
// superclasses, building field layouts, and triggering initialization is
// the job of package runtime.
package classfile

// Access flags (the subset this VM inspects).
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccNative       = 0x0100
)

// ClassFile is the parsed structure of a .class file, per the JVM
// specification's ClassFile production.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []ConstantPoolEntry
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo

	BootstrapMethods []BootstrapMethod
}

// ConstantPoolEntry is implemented by every constant pool entry type.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }
type ConstantInteger struct{ Value int32 }
type ConstantFloat struct{ Value float32 }
type ConstantLong struct{ Value int64 }
type ConstantDouble struct{ Value float64 }
type ConstantClass struct{ NameIndex uint16 }
type ConstantString struct{ StringIndex uint16 }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

type ConstantMethodType struct{ DescriptorIndex uint16 }

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

// constantPadding occupies the slot immediately after a Long or Double
// entry. Spec: "the second index holds a sentinel and MUST NOT be
// dereferenced."
type constantPadding struct{}

func (c *ConstantUtf8) Tag() uint8               { return TagUtf8 }
func (c *ConstantInteger) Tag() uint8            { return TagInteger }
func (c *ConstantFloat) Tag() uint8              { return TagFloat }
func (c *ConstantLong) Tag() uint8               { return TagLong }
func (c *ConstantDouble) Tag() uint8             { return TagDouble }
func (c *ConstantClass) Tag() uint8              { return TagClass }
func (c *ConstantString) Tag() uint8             { return TagString }
func (c *ConstantFieldref) Tag() uint8           { return TagFieldref }
func (c *ConstantMethodref) Tag() uint8          { return TagMethodref }
func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }
func (c *ConstantNameAndType) Tag() uint8        { return TagNameAndType }
func (c *ConstantMethodHandle) Tag() uint8       { return TagMethodHandle }
func (c *ConstantMethodType) Tag() uint8         { return TagMethodType }
func (c *ConstantInvokeDynamic) Tag() uint8      { return TagInvokeDynamic }
func (c *constantPadding) Tag() uint8            { return 0 }

// MethodInfo is a parsed method_info entry.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	Code        *CodeAttribute
}

func (m *MethodInfo) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *MethodInfo) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// FieldInfo is a parsed field_info entry.
type FieldInfo struct {
	AccessFlags   uint16
	Name          string
	Descriptor    string
	Attributes    []AttributeInfo
	ConstantValue *ConstantValue
}

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }
func (f *FieldInfo) IsFinal() bool  { return f.AccessFlags&AccFinal != 0 }

// ConstantValue holds a pre-decoded ConstantValue attribute, tagged by the
// kind of literal it carries.
type ConstantValue struct {
	Kind   byte // 'I', 'J', 'F', 'D', 'S' (string)
	Int    int32
	Long   int64
	Float  float32
	Double float64
	String string
}

// AttributeInfo is a raw, name-resolved class-file attribute.
type AttributeInfo struct {
	Name string
	Data []byte
}

// CodeAttribute is the decoded Code attribute of a non-abstract,
// non-native method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	LineNumbers       []LineNumberEntry
}

// ExceptionHandler is one entry of a Code attribute's exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 means catch-all (finally)
}

// LineNumberEntry maps a bytecode offset to a source line, decoded from
// the LineNumberTable attribute (spec.md §4.5 backtrace support).
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// BootstrapMethod is one entry of the class-level BootstrapMethods
// attribute, consulted by invokedynamic call sites.
type BootstrapMethod struct {
	MethodRef          uint16
	BootstrapArguments []uint16
}

// LineForPC returns the source line number covering pc, or 0 if the
// method carries no LineNumberTable.
func (c *CodeAttribute) LineForPC(pc int) int {
	best := 0
	for _, e := range c.LineNumbers {
		if int(e.StartPC) <= pc {
			best = int(e.LineNumber)
		} else {
			break
		}
	}
	return best
}

// ClassName returns the fully qualified internal name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// SuperClassName returns the internal name of the superclass, or "" when
// this class is java/lang/Object (super_class == 0).
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return GetClassName(cf.ConstantPool, cf.SuperClass)
}

// InterfaceNames resolves every entry of the interfaces table.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		n, err := GetClassName(cf.ConstantPool, idx)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}
	return names, nil
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

func (cf *ClassFile) IsInterface() bool { return cf.AccessFlags&AccInterface != 0 }
