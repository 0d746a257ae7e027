package runtime

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/mtanaka/corevm/internal/classfile"
	"github.com/mtanaka/corevm/internal/classpath"
	"github.com/mtanaka/corevm/internal/trace"
)

// Dictionary is the process-wide name -> *Class map spec.md §4.2 describes:
// "a single, process-scoped map from binary class name to linked class,
// guarded by one mutex; loading and linking a given name happens at most
// once." It is constructed once per VM instance (see DESIGN.md's decision
// on the threaded-vs-global Open Question) rather than a package-level
// global, so tests can build isolated VMs.
type Dictionary struct {
	resolver *classpath.Resolver

	mu      sync.Mutex
	classes map[string]*Class
	loading map[string]bool // names currently being parsed+linked, cycle guard
}

// NewDictionary builds an empty dictionary backed by the given resolver.
func NewDictionary(resolver *classpath.Resolver) *Dictionary {
	return &Dictionary{
		resolver: resolver,
		classes:  make(map[string]*Class),
		loading:  make(map[string]bool),
	}
}

// Find returns the already-linked class for name, if present, without
// attempting to load it.
func (d *Dictionary) Find(name string) (*Class, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.classes[name]
	return c, ok
}

// Put registers an already-constructed class (used for synthesized array
// classes and any natively-fabricated class descriptor).
func (d *Dictionary) Put(c *Class) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classes[c.Name] = c
}

// Load resolves, parses, and links name if it is not already present,
// recursively loading its superclass and superinterfaces first so field
// flattening has somewhere to flatten onto. <clinit> is NOT run here;
// spec.md §4.3 separates linking from initialization, and running bytecode
// belongs to the execution engine (internal/vm), not this package.
func (d *Dictionary) Load(name string) (*Class, error) {
	d.mu.Lock()
	if c, ok := d.classes[name]; ok {
		d.mu.Unlock()
		return c, nil
	}
	if d.loading[name] {
		d.mu.Unlock()
		return nil, fmt.Errorf("runtime: cyclic class dependency while loading %s", name)
	}
	d.loading[name] = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.loading, name)
		d.mu.Unlock()
	}()

	c, err := d.loadAndLink(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.classes[name] = c
	d.mu.Unlock()
	trace.Debugf("linked %s", name)
	return c, nil
}

func (d *Dictionary) loadAndLink(name string) (*Class, error) {
	data, origin, err := d.resolver.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("runtime: loading %s: %w", name, err)
	}
	cf, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("runtime: parsing %s (from %s): %w", name, origin, err)
	}
	return d.Link(cf)
}

// Link builds a Class from a decoded ClassFile: resolving the superclass
// (recursively loading it if necessary), flattening instance fields onto
// the superclass's layout, and collecting this class's own static fields
// into a fresh value slice, per spec.md §4.3.
func (d *Dictionary) Link(cf *classfile.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("runtime: linking: %w", err)
	}

	superName, err := cf.SuperClassName()
	if err != nil {
		return nil, fmt.Errorf("runtime: linking %s: resolving superclass name: %w", name, err)
	}
	ifaceNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("runtime: linking %s: resolving interface names: %w", name, err)
	}

	c := &Class{
		Name:       name,
		SuperName:  superName,
		IfaceNames: ifaceNames,
		File:       cf,
		byId:       make(map[FieldId]*Field),
		state:      Linked,
	}

	if c.SuperName != "" {
		super, err := d.Load(c.SuperName)
		if err != nil {
			return nil, fmt.Errorf("runtime: linking %s: loading superclass %s: %w", name, c.SuperName, err)
		}
		c.Super = super
		c.InstanceFields = append(c.InstanceFields, super.InstanceFields...)
	}

	for _, ifaceName := range c.IfaceNames {
		if _, err := d.Load(ifaceName); err != nil {
			return nil, fmt.Errorf("runtime: linking %s: loading interface %s: %w", name, ifaceName, err)
		}
	}

	for i := range cf.Fields {
		fi := &cf.Fields[i]
		if fi.IsStatic() {
			continue
		}
		f := &Field{
			Id:         FieldId{Class: name, Descriptor: fi.Descriptor, Name: fi.Name},
			Descriptor: fi.Descriptor,
			Name:       fi.Name,
			Final:      fi.IsFinal(),
			Index:      len(c.InstanceFields),
		}
		c.InstanceFields = append(c.InstanceFields, f)
		c.byId[f.Id] = f
	}

	for i := range cf.Fields {
		fi := &cf.Fields[i]
		if !fi.IsStatic() {
			continue
		}
		f := &Field{
			Id:         FieldId{Class: name, Descriptor: fi.Descriptor, Name: fi.Name},
			Descriptor: fi.Descriptor,
			Name:       fi.Name,
			Static:     true,
			Final:      fi.IsFinal(),
			Index:      len(c.StaticFields),
		}
		if fi.ConstantValue != nil {
			f.HasConstantValue = true
			f.ConstantValue = constantToValue(*fi.ConstantValue)
			if fi.ConstantValue.Kind == 'S' {
				f.ConstantString = fi.ConstantValue.String
			}
		}
		c.StaticFields = append(c.StaticFields, f)
		c.byId[f.Id] = f
	}

	c.staticValues = make([]Value, len(c.StaticFields))
	for i, f := range c.StaticFields {
		if f.HasConstantValue {
			c.staticValues[i] = f.ConstantValue
		} else {
			c.staticValues[i] = ZeroValue(f.Descriptor)
		}
	}

	return c, nil
}

func constantToValue(cv classfile.ConstantValue) Value {
	switch cv.Kind {
	case 'I':
		return IntValue(cv.Int)
	case 'J':
		return LongValue(cv.Long)
	case 'F':
		return FloatValue(cv.Float)
	case 'D':
		return DoubleValue(cv.Double)
	default:
		// 'S' (string) ConstantValues are interned lazily on first access
		// (spec.md §4.3: the String class may not be initialized yet
		// during another class's linking), so no Value is pre-built here;
		// the field keeps HasConstantValue set and callers needing the
		// literal re-resolve it through the ConstantValue.String payload.
		return NullValue()
	}
}

// IsInstanceOf reports whether an object of class from is assignable to
// class to, walking both the superclass chain and, at each step, every
// superinterface transitively — spec.md §4.4's instanceof/checkcast
// semantics, generalizing the teacher's isInstanceOfWithVisited.
func (d *Dictionary) IsInstanceOf(from, to *Class) bool {
	return d.isInstanceOf(from, to, make(map[*Class]bool))
}

func (d *Dictionary) isInstanceOf(from, to *Class, visited map[*Class]bool) bool {
	for cur := from; cur != nil; cur = cur.Super {
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, ifaceName := range cur.IfaceNames {
			iface, ok := d.Find(ifaceName)
			if !ok {
				continue
			}
			if d.isInstanceOf(iface, to, visited) {
				return true
			}
		}
	}
	return false
}

// ResolveInstanceMethod implements spec.md §4.3's simplified
// maximally-specific rule: a concrete method on the receiver's own
// superclass chain always wins; failing that, the unique non-abstract
// default method found across the receiver's interface closure wins;
// anything else (none found, or more than one distinct default candidate)
// is reported back to the caller so it can raise AbstractMethodError, since
// this VM does not implement the full most-specific-superinterface
// tie-break the JVM spec defines for genuinely ambiguous diamonds.
func (d *Dictionary) ResolveInstanceMethod(receiver *Class, name, descriptor string) (*Class, *classfile.MethodInfo, bool) {
	if declClass, m, ok := receiver.FindMethod(name, descriptor); ok {
		return declClass, m, true
	}

	var found *Class
	var foundM *classfile.MethodInfo
	count := 0
	visited := make(map[*Class]bool)

	var walk func(c *Class)
	walk = func(c *Class) {
		for _, ifaceName := range c.IfaceNames {
			iface, ok := d.Find(ifaceName)
			if !ok || visited[iface] {
				continue
			}
			visited[iface] = true
			if iface.File != nil {
				if m := iface.File.FindMethod(name, descriptor); m != nil && !m.IsAbstract() {
					found = iface
					foundM = m
					count++
				}
			}
			walk(iface)
		}
	}
	for cur := receiver; cur != nil; cur = cur.Super {
		walk(cur)
	}

	if count == 1 {
		return found, foundM, true
	}
	return nil, nil, false
}

// ResolveStaticField implements spec.md §4.3's static-field search order
// verbatim: "static fields searched in class, superinterfaces, then
// superclass." Unlike ResolveInstanceMethod this is a strict first-match
// walk (the specification does not call out an ambiguity rule for fields),
// recursing into each superinterface's own superinterfaces before falling
// back to the superclass.
func (d *Dictionary) ResolveStaticField(cls *Class, name, descriptor string) (*Class, *Field, bool) {
	if f, ok := cls.FindStaticField(name, descriptor); ok {
		return cls, f, true
	}
	for _, ifaceName := range cls.IfaceNames {
		iface, ok := d.Find(ifaceName)
		if !ok {
			continue
		}
		if declClass, f, ok := d.ResolveStaticField(iface, name, descriptor); ok {
			return declClass, f, true
		}
	}
	if cls.Super != nil {
		return d.ResolveStaticField(cls.Super, name, descriptor)
	}
	return nil, nil, false
}

// ArrayClass returns the synthesized Class describing an array type whose
// JVM array descriptor is arrayDescriptor (e.g. "[I" or
// "[Ljava/lang/String;"), creating and caching it on first request. Array
// classes have no fields and no superclass in this VM's simplified model
// (spec.md §9: arrays are not required to subtype java/lang/Object for
// instanceof/checkcast purposes beyond identity).
func (d *Dictionary) ArrayClass(arrayDescriptor string) *Class {
	d.mu.Lock()
	if c, ok := d.classes[arrayDescriptor]; ok {
		d.mu.Unlock()
		return c
	}
	d.mu.Unlock()

	c := &Class{
		Name:      arrayDescriptor,
		ArrayElem: arrayDescriptor[1:],
		byId:      make(map[FieldId]*Field),
		state:     Initialized,
	}
	d.Put(c)
	return c
}

// MirrorOf returns the java/lang/Class instance reflecting c, creating it on
// first request (spec.md §4.6: Object.getClass, Class.forName). The mirror's
// own Class is java/lang/Class if the classpath carries a real one, or a
// minimal zero-field stand-in otherwise — this VM never requires
// java/lang/Class to declare fields corevm's own natives depend on.
func (d *Dictionary) MirrorOf(c *Class) *Mirror {
	if c.mirror != nil {
		return c.mirror
	}
	classClass, ok := d.Find("java/lang/Class")
	if !ok {
		var err error
		classClass, err = d.Load("java/lang/Class")
		if err != nil {
			classClass = &Class{Name: "java/lang/Class", byId: make(map[FieldId]*Field), state: Initialized}
			d.Put(classClass)
		}
	}
	m := &Mirror{Instance: NewInstance(classClass), Reflects: c}
	c.mirror = m
	return m
}
