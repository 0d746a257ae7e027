package runtime

import (
	"fmt"

	"github.com/mtanaka/corevm/internal/classfile"
	"github.com/mtanaka/corevm/internal/sync2"
)

// InitState is the class initialization state machine spec.md §4.3
// describes, transliterated from the monitor-guarded states the Rust
// teacher's runtime/class_loader.rs documentation uses: a class moves
// Unloaded -> Linked -> Initializing -> Initialized, or to Failed if its
// <clinit> (or a superclass's) throws, per the JVM spec's "erroneous class"
// rule spec.md §4.3 reaffirms.
type InitState int

const (
	Unloaded InitState = iota
	Linked
	Initializing
	Initialized
	Failed
)

func (s InitState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Linked:
		return "linked"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Class is the linked, queryable descriptor one class file becomes: field
// layout flattened instance-then-static across the superclass chain
// (spec.md §4.3), a resolved superclass pointer, and the init state machine
// guarded by a ReentrantMutex+Condvar pair so concurrent threads racing to
// trigger <clinit> block on the same initialization rather than running it
// twice (spec.md §4.3, §4.7, testable property 10).
type Class struct {
	Name       string
	SuperName  string
	Super      *Class
	IfaceNames []string
	File       *classfile.ClassFile
	ArrayElem  string // non-empty for synthesized array classes like "[I"

	InstanceFields []*Field
	StaticFields   []*Field
	staticValues   []Value

	byId map[FieldId]*Field

	mu    sync2.ReentrantMutex
	cond  sync2.Condvar
	state InitState
	err   error

	mirror *Mirror
}

// IsArray reports whether this Class was synthesized to describe an array
// type rather than parsed from a class file.
func (c *Class) IsArray() bool { return c.ArrayElem != "" }

// State returns the current initialization state under the class's own
// monitor, since another goroutine may be transitioning it concurrently.
func (c *Class) State(threadID int64) InitState {
	c.mu.Lock(threadID)
	defer c.mu.Unlock(threadID)
	return c.state
}

// StaticValue returns the current value of a flattened static field slot.
func (c *Class) StaticValue(idx int) Value       { return c.staticValues[idx] }
func (c *Class) SetStaticValue(idx int, v Value) { c.staticValues[idx] = v }

// BeginInitialization implements the blocking rendezvous spec.md §4.3
// requires: if the class is already Initialized or Failed, it returns
// immediately with run=false (nothing left to do, err carries a prior
// failure per JVM's "erroneous class" rule). If another thread is
// currently running <clinit>, it blocks on the class's Condvar until that
// finishes, then re-checks. Otherwise it claims initialization itself,
// transitions to Initializing, and returns run=true so the caller (the
// execution engine) executes <clinit>.
func (c *Class) BeginInitialization(threadID int64) (run bool, err error) {
	c.mu.Lock(threadID)
	defer c.mu.Unlock(threadID)
	for {
		switch c.state {
		case Initialized:
			return false, nil
		case Failed:
			return false, c.err
		case Linked:
			c.state = Initializing
			return true, nil
		case Initializing:
			c.cond.Wait(&c.mu, threadID)
		default:
			panic("runtime: BeginInitialization on class in state " + c.state.String())
		}
	}
}

// FinishInitialization transitions out of Initializing, waking any threads
// blocked in BeginInitialization. Pass a non-nil err when <clinit> (or a
// superclass's) failed.
func (c *Class) FinishInitialization(threadID int64, err error) {
	c.mu.Lock(threadID)
	defer c.mu.Unlock(threadID)
	if c.state != Initializing {
		panic("runtime: FinishInitialization on class not in Initializing state")
	}
	if err != nil {
		c.state = Failed
		c.err = err
	} else {
		c.state = Initialized
	}
	c.cond.Broadcast(&c.mu)
}

// FindInstanceField looks up a field by name+descriptor across the
// flattened instance layout, matching field.rs's ClassObject::get_field_id
// lookup-by-name-and-descriptor pattern rather than a raw offset.
func (c *Class) FindInstanceField(name, descriptor string) (*Field, bool) {
	for _, f := range c.InstanceFields {
		if f.Name == name && f.Descriptor == descriptor {
			return f, true
		}
	}
	return nil, false
}

// FindStaticField looks up a field by name+descriptor among this class's
// own static fields only; StaticFields holds no inherited statics, and
// Dictionary.ResolveStaticField is what walks superclasses and
// superinterfaces.
func (c *Class) FindStaticField(name, descriptor string) (*Field, bool) {
	for _, f := range c.StaticFields {
		if f.Name == name && f.Descriptor == descriptor {
			return f, true
		}
	}
	return nil, false
}

// FindMethod walks this class and its superclass chain looking for a
// concrete (non-interface-default) method, mirroring the teacher's
// resolveMethod superclass walk.
func (c *Class) FindMethod(name, descriptor string) (*Class, *classfile.MethodInfo, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if cur.File == nil {
			continue
		}
		if m := cur.File.FindMethod(name, descriptor); m != nil {
			return cur, m, true
		}
	}
	return nil, nil, false
}

// IsSubclassOf reports whether c is target or a (transitive) subclass of
// target, walking the Super chain only (not interfaces); callers that also
// need interface assignability should use Dictionary.IsInstanceOf.
func (c *Class) IsSubclassOf(target *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == target {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	return fmt.Sprintf("class %s (%s)", c.Name, c.state)
}
