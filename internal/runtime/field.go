package runtime

// FieldId is the three-part joined identity (declaring class, descriptor,
// name) spec.md §4.3 requires for field lookups, grounded in
// original_source's field.rs: `Field::id` joins [class.name, desc, name]
// with a path delimiter so two fields from unrelated classes that merely
// share a name and descriptor never compare equal by accident. Go gives us
// a comparable struct for this instead of a joined string.
type FieldId struct {
	Class      string
	Descriptor string
	Name       string
}

// Field is one entry in a Class's flattened field layout: the declaring
// class's own field plus the slot it occupies in the owning Class's
// instance or static value array.
type Field struct {
	Id         FieldId
	Descriptor string
	Name       string
	Static     bool
	Final      bool
	Index      int // offset into Class.InstanceFields/StaticFields and the
	            // parallel value slice (Instance.fields or Class.staticValues)

	// ConstantValue holds a compile-time constant for a static final field
	// with a ConstantValue attribute, decoded at link time per spec.md §4.3
	// and field.rs's handling of the same attribute; zero Value otherwise.
	HasConstantValue bool
	ConstantValue    Value
	// ConstantString carries the raw UTF-8 payload when ConstantValue is a
	// string literal; the java/lang/String mirror itself is interned lazily
	// on first read rather than built during linking (spec.md §4.3).
	ConstantString string
}
