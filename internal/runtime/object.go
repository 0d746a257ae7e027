package runtime

import "github.com/mtanaka/corevm/internal/sync2"

// Handle is the uniform reference type every KindRef Value carries. Identity
// is Go pointer identity of the Handle itself (spec.md §3: "identity =
// pointer identity"), matching the teacher's bare `interface{}` Ref field but
// giving it one concrete wrapper instead of ad hoc *JObject/*JArray/string.
type Handle struct {
	Obj Object
}

// Object is implemented by every concrete heap shape a Handle can wrap.
type Object interface {
	Class() *Class
}

// Instance is a regular object: one Value slot per flattened instance field
// of its class and every superclass, in the order Dictionary.Link laid
// them out. It owns the monitor (ReentrantMutex+Condvar pair) spec.md §4.4's
// monitorenter/monitorexit and §4.6's Object.wait/notify both need.
type Instance struct {
	class  *Class
	fields []Value

	monitor sync2.ReentrantMutex
	waiters sync2.Condvar
}

func NewInstance(c *Class) *Instance {
	fields := make([]Value, len(c.InstanceFields))
	for i, f := range c.InstanceFields {
		fields[i] = ZeroValue(f.Descriptor)
	}
	return &Instance{class: c, fields: fields}
}

func (o *Instance) Class() *Class { return o.class }

func (o *Instance) GetField(idx int) Value     { return o.fields[idx] }
func (o *Instance) SetField(idx int, v Value)  { o.fields[idx] = v }

// Monitor returns the mutex/condvar pair backing this object's intrinsic
// lock, shared by monitorenter/exit, synchronized methods, and
// Object.wait/notify/notifyAll (spec.md §4.4, §4.6).
func (o *Instance) Monitor() (*sync2.ReentrantMutex, *sync2.Condvar) {
	return &o.monitor, &o.waiters
}

// TypeArray is a primitive array ([I, [J, [F, [D, [B, [C, [S, [Z). Elements
// are stored as Values of the matching Kind to keep array-store narrowing
// logic (bastore masking to a byte, castore to UTF-16, ...) in one place,
// the interpreter's *astore handlers.
type TypeArray struct {
	class    *Class // the array's own synthesized Class, e.g. "[I"
	ElemDesc byte   // one of B C D F I J S Z
	Elems    []Value
}

func NewTypeArray(c *Class, elemDesc byte, length int) *TypeArray {
	elems := make([]Value, length)
	zero := ZeroValue(string(elemDesc))
	for i := range elems {
		elems[i] = zero
	}
	return &TypeArray{class: c, ElemDesc: elemDesc, Elems: elems}
}

func (a *TypeArray) Class() *Class { return a.class }
func (a *TypeArray) Length() int   { return len(a.Elems) }

// ObjArray is a reference array ([L...; or [[...). Elements are Handles,
// not arbitrary Values, since every slot must be null or a reference.
type ObjArray struct {
	class        *Class
	ElementClass string // binary name of the declared element type
	Elems        []*Handle
}

func NewObjArray(c *Class, elementClass string, length int) *ObjArray {
	return &ObjArray{class: c, ElementClass: elementClass, Elems: make([]*Handle, length)}
}

func (a *ObjArray) Class() *Class { return a.class }
func (a *ObjArray) Length() int   { return len(a.Elems) }

// Mirror is the runtime representation of a `java.lang.Class` instance: an
// Instance of java/lang/Class with a back-pointer to the Class it reflects,
// per spec.md §4.6's getClass()/Class.forName needs. One Mirror per Class,
// created lazily and cached on the Class itself.
type Mirror struct {
	*Instance
	Reflects *Class
}
