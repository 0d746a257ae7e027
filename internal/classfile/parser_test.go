package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classFileBuilder assembles raw .class bytes field-by-field, the byte-level
// counterpart to the higher packages' poolBuilder helpers (internal/vm's
// interp_test.go, internal/runtime's dictionary_test.go) which build
// ClassFile Go structs directly. This one exercises Parse itself against the
// wire format spec.md §4.1 describes, since no other package-level test
// here decodes real bytes end to end.
type classFileBuilder struct {
	buf  bytes.Buffer
	pool [][]byte // already-encoded constant pool entries, 1-indexed (index 0 unused)
}

func newClassFileBuilder() *classFileBuilder {
	return &classFileBuilder{pool: [][]byte{nil}}
}

func (b *classFileBuilder) utf8(s string) uint16 {
	var e bytes.Buffer
	e.WriteByte(TagUtf8)
	binary.Write(&e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool) - 1)
}

func (b *classFileBuilder) class(name string) uint16 {
	nameIdx := b.utf8(name)
	var e bytes.Buffer
	e.WriteByte(TagClass)
	binary.Write(&e, binary.BigEndian, nameIdx)
	b.pool = append(b.pool, e.Bytes())
	return uint16(len(b.pool) - 1)
}

// build assembles the full byte stream: magic, version, constant pool,
// access flags, this/super, an empty interfaces table, one field (name "x",
// descriptor "I", no attributes), one static method ("main",
// "([Ljava/lang/String;)V") carrying a single-instruction Code attribute
// (bytecode `return`), and an empty class-attributes table.
func (b *classFileBuilder) build(thisIdx, superIdx uint16) []byte {
	fieldNameIdx := b.utf8("x")
	fieldDescIdx := b.utf8("I")
	methodNameIdx := b.utf8("main")
	methodDescIdx := b.utf8("([Ljava/lang/String;)V")
	codeAttrNameIdx := b.utf8("Code")

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(classMagic))
	binary.Write(&out, binary.BigEndian, uint16(0))  // minor
	binary.Write(&out, binary.BigEndian, uint16(52)) // major (Java 8)

	binary.Write(&out, binary.BigEndian, uint16(len(b.pool))) // constant_pool_count
	for i := 1; i < len(b.pool); i++ {
		out.Write(b.pool[i])
	}

	binary.Write(&out, binary.BigEndian, uint16(0x0021)) // access_flags: ACC_PUBLIC | ACC_SUPER
	binary.Write(&out, binary.BigEndian, thisIdx)
	binary.Write(&out, binary.BigEndian, superIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // interfaces_count

	binary.Write(&out, binary.BigEndian, uint16(1)) // fields_count
	binary.Write(&out, binary.BigEndian, uint16(0x0001))
	binary.Write(&out, binary.BigEndian, fieldNameIdx)
	binary.Write(&out, binary.BigEndian, fieldDescIdx)
	binary.Write(&out, binary.BigEndian, uint16(0)) // field attributes_count

	binary.Write(&out, binary.BigEndian, uint16(1)) // methods_count
	binary.Write(&out, binary.BigEndian, uint16(0x0009))
	binary.Write(&out, binary.BigEndian, methodNameIdx)
	binary.Write(&out, binary.BigEndian, methodDescIdx)
	binary.Write(&out, binary.BigEndian, uint16(1)) // method attributes_count

	var code bytes.Buffer
	binary.Write(&code, binary.BigEndian, uint16(1)) // max_stack
	binary.Write(&code, binary.BigEndian, uint16(1)) // max_locals
	binary.Write(&code, binary.BigEndian, uint32(1)) // code_length
	code.WriteByte(0xB1)                              // return
	binary.Write(&code, binary.BigEndian, uint16(0))  // exception_table_length
	binary.Write(&code, binary.BigEndian, uint16(0))  // code attributes_count

	binary.Write(&out, binary.BigEndian, codeAttrNameIdx)
	binary.Write(&out, binary.BigEndian, uint32(code.Len()))
	out.Write(code.Bytes())

	binary.Write(&out, binary.BigEndian, uint16(0)) // class attributes_count

	return out.Bytes()
}

func TestParseDecodesHandAssembledClassFile(t *testing.T) {
	b := newClassFileBuilder()
	thisIdx := b.class("Hello")
	superIdx := b.class("java/lang/Object")
	raw := b.build(thisIdx, superIdx)

	cf, err := Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cf.MajorVersion != 52 {
		t.Errorf("MajorVersion: got %d, want 52", cf.MajorVersion)
	}

	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("ClassName: %v", err)
	}
	if name != "Hello" {
		t.Errorf("ClassName: got %q, want %q", name, "Hello")
	}

	super, err := cf.SuperClassName()
	if err != nil {
		t.Fatalf("SuperClassName: %v", err)
	}
	if super != "java/lang/Object" {
		t.Errorf("SuperClassName: got %q, want %q", super, "java/lang/Object")
	}

	if len(cf.Fields) != 1 {
		t.Fatalf("field count: got %d, want 1", len(cf.Fields))
	}
	if cf.Fields[0].Name != "x" || cf.Fields[0].Descriptor != "I" {
		t.Errorf("field: got %+v", cf.Fields[0])
	}

	if len(cf.Methods) != 1 {
		t.Fatalf("method count: got %d, want 1", len(cf.Methods))
	}
	m := cf.Methods[0]
	if m.Name != "main" || m.Descriptor != "([Ljava/lang/String;)V" {
		t.Errorf("method: got name=%q descriptor=%q", m.Name, m.Descriptor)
	}
	if m.Code == nil {
		t.Fatal("method has no Code attribute")
	}
	if m.Code.MaxStack != 1 || m.Code.MaxLocals != 1 {
		t.Errorf("Code: got MaxStack=%d MaxLocals=%d, want 1,1", m.Code.MaxStack, m.Code.MaxLocals)
	}
	if !bytes.Equal(m.Code.Code, []byte{0xB1}) {
		t.Errorf("Code bytes: got %v, want [0xB1]", m.Code.Code)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x00}
	if _, err := Parse(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected an error for bad magic, got nil")
	}
}

func TestParseRejectsUnknownConstantPoolTag(t *testing.T) {
	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(classMagic))
	binary.Write(&out, binary.BigEndian, uint16(0))
	binary.Write(&out, binary.BigEndian, uint16(52))
	binary.Write(&out, binary.BigEndian, uint16(2)) // constant_pool_count (1 entry)
	out.WriteByte(0xFF)                              // unknown tag

	if _, err := Parse(bytes.NewReader(out.Bytes())); err == nil {
		t.Fatal("expected an error for unknown constant pool tag, got nil")
	}
}
