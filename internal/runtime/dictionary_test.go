package runtime

import (
	"testing"

	"github.com/mtanaka/corevm/internal/classfile"
)

// buildClassFile constructs a minimal, hand-assembled ClassFile the way the
// teacher's frame_test.go builds fixtures directly as Go structs rather than
// real .class bytes: index 0 is unused (constant pool is 1-indexed), utf8
// entries follow, then a ConstantClass for thisName and (if super != "") one
// for superName.
func buildClassFile(thisName, superName string, fields []classfile.FieldInfo) *classfile.ClassFile {
	pool := []classfile.ConstantPoolEntry{nil}
	utf8 := func(s string) uint16 {
		pool = append(pool, &classfile.ConstantUtf8{Value: s})
		return uint16(len(pool) - 1)
	}
	classRef := func(name string) uint16 {
		idx := utf8(name)
		pool = append(pool, &classfile.ConstantClass{NameIndex: idx})
		return uint16(len(pool) - 1)
	}

	thisIdx := classRef(thisName)
	var superIdx uint16
	if superName != "" {
		superIdx = classRef(superName)
	}

	return &classfile.ClassFile{
		ConstantPool: pool,
		ThisClass:    thisIdx,
		SuperClass:   superIdx,
		Fields:       fields,
	}
}

func field(name, descriptor string, static, final bool) classfile.FieldInfo {
	fi := classfile.FieldInfo{Name: name, Descriptor: descriptor}
	if static {
		fi.AccessFlags |= classfile.AccStatic
	}
	if final {
		fi.AccessFlags |= classfile.AccFinal
	}
	return fi
}

func TestLinkFlattensInstanceFieldsAcrossHierarchy(t *testing.T) {
	d := NewDictionary(nil)

	baseCF := buildClassFile("Base", "", []classfile.FieldInfo{
		field("x", "I", false, false),
	})
	base, err := d.Link(baseCF)
	if err != nil {
		t.Fatalf("link Base: %v", err)
	}
	d.Put(base)

	childCF := buildClassFile("Child", "Base", []classfile.FieldInfo{
		field("y", "I", false, false),
	})
	child, err := d.Link(childCF)
	if err != nil {
		t.Fatalf("link Child: %v", err)
	}

	if len(child.InstanceFields) != 2 {
		t.Fatalf("expected 2 flattened instance fields, got %d", len(child.InstanceFields))
	}
	if child.InstanceFields[0].Name != "x" || child.InstanceFields[0].Index != 0 {
		t.Errorf("inherited field x: got %+v", child.InstanceFields[0])
	}
	if child.InstanceFields[1].Name != "y" || child.InstanceFields[1].Index != 1 {
		t.Errorf("own field y: got %+v", child.InstanceFields[1])
	}

	inst := NewInstance(child)
	if len(inst.fields) != 2 {
		t.Fatalf("instance should have 2 field slots, got %d", len(inst.fields))
	}
}

func TestFieldOffsetsStableAcrossRelinks(t *testing.T) {
	// Testable property: field offset stability — linking the same shape
	// twice must assign the same indices, since callers cache Field.Index.
	d1 := NewDictionary(nil)
	cf1 := buildClassFile("Point", "", []classfile.FieldInfo{
		field("x", "I", false, false),
		field("y", "I", false, false),
	})
	c1, err := d1.Link(cf1)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	d2 := NewDictionary(nil)
	cf2 := buildClassFile("Point", "", []classfile.FieldInfo{
		field("x", "I", false, false),
		field("y", "I", false, false),
	})
	c2, err := d2.Link(cf2)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	for i := range c1.InstanceFields {
		if c1.InstanceFields[i].Index != c2.InstanceFields[i].Index {
			t.Errorf("field %d: index mismatch %d vs %d", i, c1.InstanceFields[i].Index, c2.InstanceFields[i].Index)
		}
	}
}

func TestStaticFieldsNotInherited(t *testing.T) {
	d := NewDictionary(nil)
	baseCF := buildClassFile("Base", "", []classfile.FieldInfo{
		field("counter", "I", true, false),
	})
	base, err := d.Link(baseCF)
	if err != nil {
		t.Fatalf("link Base: %v", err)
	}
	d.Put(base)

	childCF := buildClassFile("Child", "Base", nil)
	child, err := d.Link(childCF)
	if err != nil {
		t.Fatalf("link Child: %v", err)
	}
	if len(child.StaticFields) != 0 {
		t.Errorf("expected no inherited static fields on Child, got %d", len(child.StaticFields))
	}
	if len(base.StaticFields) != 1 {
		t.Errorf("expected Base to keep its own static field, got %d", len(base.StaticFields))
	}
}

func TestInitializationStateMachine(t *testing.T) {
	d := NewDictionary(nil)
	cf := buildClassFile("Singleton", "", nil)
	c, err := d.Link(cf)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	run, err := c.BeginInitialization(1)
	if err != nil || !run {
		t.Fatalf("first BeginInitialization: run=%v err=%v", run, err)
	}
	if c.State(1) != Initializing {
		t.Errorf("expected Initializing, got %s", c.State(1))
	}

	c.FinishInitialization(1, nil)
	if c.State(1) != Initialized {
		t.Errorf("expected Initialized, got %s", c.State(1))
	}

	run, err = c.BeginInitialization(2)
	if err != nil || run {
		t.Errorf("second BeginInitialization should be a no-op: run=%v err=%v", run, err)
	}
}

func TestInitializationFailurePropagates(t *testing.T) {
	d := NewDictionary(nil)
	cf := buildClassFile("Broken", "", nil)
	c, err := d.Link(cf)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	run, err := c.BeginInitialization(1)
	if err != nil || !run {
		t.Fatalf("BeginInitialization: run=%v err=%v", run, err)
	}
	sentinel := errBoom
	c.FinishInitialization(1, sentinel)

	if c.State(1) != Failed {
		t.Errorf("expected Failed, got %s", c.State(1))
	}
	_, err = c.BeginInitialization(2)
	if err != sentinel {
		t.Errorf("expected sentinel error from failed class, got %v", err)
	}
}

func TestIsInstanceOfWalksInterfacesAndSupers(t *testing.T) {
	d := NewDictionary(nil)

	ifaceCF := buildClassFile("Runnable", "", nil)
	iface, err := d.Link(ifaceCF)
	if err != nil {
		t.Fatalf("link Runnable: %v", err)
	}
	d.Put(iface)

	baseCF := buildClassFile("Base", "", nil)
	base, err := d.Link(baseCF)
	if err != nil {
		t.Fatalf("link Base: %v", err)
	}
	d.Put(base)

	child := mustLinkWithInterfaces(t, d, "Child", "Base", []string{"Runnable"})

	if !d.IsInstanceOf(child, base) {
		t.Error("Child should be instance of Base")
	}
	if !d.IsInstanceOf(child, iface) {
		t.Error("Child should be instance of Runnable via its interface list")
	}
}

// mustLinkWithInterfaces builds and links a class whose interfaces table
// resolves to the given binary names, since buildClassFile doesn't expose
// interface wiring directly.
func mustLinkWithInterfaces(t *testing.T, d *Dictionary, name, super string, ifaces []string) *Class {
	t.Helper()
	cf := buildClassFile(name, super, nil)
	for _, ifaceName := range ifaces {
		pool := cf.ConstantPool
		nameIdx := uint16(len(pool))
		pool = append(pool, &classfile.ConstantUtf8{Value: ifaceName})
		classIdx := uint16(len(pool))
		pool = append(pool, &classfile.ConstantClass{NameIndex: nameIdx})
		cf.ConstantPool = pool
		cf.Interfaces = append(cf.Interfaces, classIdx)
	}
	c, err := d.Link(cf)
	if err != nil {
		t.Fatalf("link %s: %v", name, err)
	}
	return c
}

func TestResolveInstanceMethodPrefersConcreteOverDefault(t *testing.T) {
	d := NewDictionary(nil)

	ifaceCF := buildClassFile("Greeter", "", nil)
	ifaceCF.Methods = []classfile.MethodInfo{{Name: "greet", Descriptor: "()I"}}
	iface, err := d.Link(ifaceCF)
	if err != nil {
		t.Fatalf("link Greeter: %v", err)
	}
	d.Put(iface)

	concrete := mustLinkWithInterfaces(t, d, "Polite", "", []string{"Greeter"})
	concrete.File.Methods = []classfile.MethodInfo{{Name: "greet", Descriptor: "()I"}}

	declClass, m, ok := d.ResolveInstanceMethod(concrete, "greet", "()I")
	if !ok || declClass != concrete || m == nil {
		t.Fatalf("expected Polite's own greet to win over Greeter's default, got declClass=%v ok=%v", declClass, ok)
	}
}

func TestResolveInstanceMethodFallsBackToUniqueDefault(t *testing.T) {
	d := NewDictionary(nil)

	ifaceCF := buildClassFile("Greeter", "", nil)
	ifaceCF.Methods = []classfile.MethodInfo{{Name: "greet", Descriptor: "()I"}}
	iface, err := d.Link(ifaceCF)
	if err != nil {
		t.Fatalf("link Greeter: %v", err)
	}
	d.Put(iface)

	impl := mustLinkWithInterfaces(t, d, "Impl", "", []string{"Greeter"})

	declClass, m, ok := d.ResolveInstanceMethod(impl, "greet", "()I")
	if !ok || declClass != iface || m == nil {
		t.Fatalf("expected Greeter's default greet to be found, got declClass=%v ok=%v", declClass, ok)
	}

	if _, _, ok := d.ResolveInstanceMethod(impl, "missing", "()I"); ok {
		t.Error("expected no match for a method absent from both the chain and the interface closure")
	}
}

func TestResolveStaticFieldFindsInterfaceConstant(t *testing.T) {
	d := NewDictionary(nil)

	constCF := buildClassFile("Constants", "", []classfile.FieldInfo{
		field("MAX", "I", true, true),
	})
	constIface, err := d.Link(constCF)
	if err != nil {
		t.Fatalf("link Constants: %v", err)
	}
	d.Put(constIface)

	impl := mustLinkWithInterfaces(t, d, "Impl", "", []string{"Constants"})

	declClass, f, ok := d.ResolveStaticField(impl, "MAX", "I")
	if !ok || declClass != constIface || f == nil {
		t.Fatalf("expected MAX to resolve via the implemented interface, got declClass=%v ok=%v", declClass, ok)
	}

	if _, _, ok := d.ResolveStaticField(impl, "MISSING", "I"); ok {
		t.Error("expected no match for a field absent from class, interfaces, and superclasses")
	}
}

func TestResolveStaticFieldPrefersOwnFieldOverInterface(t *testing.T) {
	d := NewDictionary(nil)

	constCF := buildClassFile("Constants", "", []classfile.FieldInfo{
		field("MAX", "I", true, true),
	})
	constIface, err := d.Link(constCF)
	if err != nil {
		t.Fatalf("link Constants: %v", err)
	}
	d.Put(constIface)

	ownCF := buildClassFile("Impl", "", []classfile.FieldInfo{
		field("MAX", "I", true, true),
	})
	for _, ifaceName := range []string{"Constants"} {
		pool := ownCF.ConstantPool
		nameIdx := uint16(len(pool))
		pool = append(pool, &classfile.ConstantUtf8{Value: ifaceName})
		classIdx := uint16(len(pool))
		pool = append(pool, &classfile.ConstantClass{NameIndex: nameIdx})
		ownCF.ConstantPool = pool
		ownCF.Interfaces = append(ownCF.Interfaces, classIdx)
	}
	impl, err := d.Link(ownCF)
	if err != nil {
		t.Fatalf("link Impl: %v", err)
	}

	declClass, _, ok := d.ResolveStaticField(impl, "MAX", "I")
	if !ok || declClass != impl {
		t.Fatalf("expected Impl's own MAX to win over Constants', got declClass=%v ok=%v", declClass, ok)
	}
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
