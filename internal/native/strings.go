package native

import (
	"sync"

	"github.com/mtanaka/corevm/internal/runtime"
)

// JavaString is the heap shape backing every java/lang/String instance
// this VM creates. Real UTF-16 char[]-array backing (as
// crates/vm/src/util/oop.rs's new_java_lang_string2/3 build) is
// unnecessary plumbing for a core that never needs to expose String's
// internal fields to user bytecode directly; what matters for spec.md §4.6
// and testable property 9 (string identity) is that distinct Go
// *runtime.Handle values are distinct Java objects and that interning
// collapses equal contents to one Handle, which this satisfies while
// storing the simpler Go string form.
type JavaString struct {
	class *runtime.Class
	Value string
}

func (s *JavaString) Class() *runtime.Class { return s.class }

// stringClass resolves (or synthesizes a minimal stand-in for)
// java/lang/String, so string literals work even against a classpath that
// doesn't ship a real String.class.
func stringClass(dict *runtime.Dictionary) *runtime.Class {
	if c, ok := dict.Find("java/lang/String"); ok {
		return c
	}
	c, err := dict.Load("java/lang/String")
	if err == nil {
		return c
	}
	return dict.ArrayClass("Ljava/lang/String;")
}

// NewJavaString wraps a Go string as a fresh (uninterned) java/lang/String
// instance.
func NewJavaString(dict *runtime.Dictionary, s string) *runtime.Handle {
	return &runtime.Handle{Obj: &JavaString{class: stringClass(dict), Value: s}}
}

// ExtractString returns the Go string backing a java/lang/String handle,
// or ("", false) if v is not a string.
func ExtractString(v runtime.Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	ref := v.Ref()
	if ref == nil || ref.Obj == nil {
		return "", false
	}
	js, ok := ref.Obj.(*JavaString)
	if !ok {
		return "", false
	}
	return js.Value, true
}

// StringPool implements the interning table behind String.intern and every
// ldc of a ConstantString, spec.md testable property 9: two interned
// strings with equal content are the same Handle.
type StringPool struct {
	mu     sync.Mutex
	byText map[string]*runtime.Handle
}

func NewStringPool() *StringPool {
	return &StringPool{byText: make(map[string]*runtime.Handle)}
}

func (p *StringPool) Intern(dict *runtime.Dictionary, s string) *runtime.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.byText[s]; ok {
		return h
	}
	h := NewJavaString(dict, s)
	p.byText[s] = h
	return h
}
