package native

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mtanaka/corevm/internal/classpath"
	"github.com/mtanaka/corevm/internal/runtime"
)

func newTestEnv(t *testing.T) (*Env, *runtime.Dictionary) {
	t.Helper()
	resolver, err := classpath.NewResolver("")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	dict := runtime.NewDictionary(resolver)
	return &Env{Dictionary: dict, Strings: NewStringPool(), ThreadID: 1}, dict
}

func TestStringPoolInternsByContent(t *testing.T) {
	env, dict := newTestEnv(t)
	a := env.Strings.Intern(dict, "hello")
	b := env.Strings.Intern(dict, "hello")
	if a != b {
		t.Error("expected interned strings with equal content to share identity")
	}
	c := env.Strings.Intern(dict, "world")
	if a == c {
		t.Error("expected distinct content to produce distinct handles")
	}
}

func TestExtractStringRoundTrip(t *testing.T) {
	_, dict := newTestEnv(t)
	h := NewJavaString(dict, "payload")
	s, ok := ExtractString(runtime.RefValue(h))
	if !ok || s != "payload" {
		t.Fatalf("ExtractString: got (%q, %v)", s, ok)
	}
	if _, ok := ExtractString(runtime.NullValue()); ok {
		t.Error("ExtractString on null should report ok=false")
	}
}

func TestArraycopyPrimitive(t *testing.T) {
	arrClass := &runtime.Class{Name: "[I", ArrayElem: "I"}
	src := runtime.NewTypeArray(arrClass, 'I', 5)
	for i := range src.Elems {
		src.Elems[i] = runtime.IntValue(int32(i))
	}
	dst := runtime.NewTypeArray(arrClass, 'I', 5)

	args := []runtime.Value{
		runtime.RefValue(&runtime.Handle{Obj: src}),
		runtime.IntValue(1),
		runtime.RefValue(&runtime.Handle{Obj: dst}),
		runtime.IntValue(0),
		runtime.IntValue(3),
	}
	if err := arraycopy(args); err != nil {
		t.Fatalf("arraycopy: %v", err)
	}
	want := []int32{1, 2, 3, 0, 0}
	for i, w := range want {
		if dst.Elems[i].Int() != w {
			t.Errorf("dst[%d]: got %d, want %d", i, dst.Elems[i].Int(), w)
		}
	}
}

func TestArraycopyBoundsError(t *testing.T) {
	arrClass := &runtime.Class{Name: "[I", ArrayElem: "I"}
	src := runtime.NewTypeArray(arrClass, 'I', 2)
	dst := runtime.NewTypeArray(arrClass, 'I', 2)
	args := []runtime.Value{
		runtime.RefValue(&runtime.Handle{Obj: src}),
		runtime.IntValue(0),
		runtime.RefValue(&runtime.Handle{Obj: dst}),
		runtime.IntValue(0),
		runtime.IntValue(5),
	}
	err := arraycopy(args)
	class, _, ok := ThrowableClassAndMessage(err)
	if !ok || class != "java/lang/ArrayIndexOutOfBoundsException" {
		t.Fatalf("expected ArrayIndexOutOfBoundsException, got %v", err)
	}
}

func TestFileInputStreamNativesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	r := NewRegistry()
	registerFileInputStreamNatives(r)
	env, dict := newTestEnv(t)

	streamClass := &runtime.Class{Name: "java/io/FileInputStream"}
	streamClass.InstanceFields = []*runtime.Field{{Name: "fd", Descriptor: "I", Index: 0}}
	stream := &runtime.Handle{Obj: runtime.NewInstance(streamClass)}

	open, _ := r.Lookup("java/io/FileInputStream", "open0", "(Ljava/lang/String;)V")
	if _, _, err := open(env, []runtime.Value{
		runtime.RefValue(stream), runtime.RefValue(NewJavaString(dict, path)),
	}); err != nil {
		t.Fatalf("open0: %v", err)
	}

	arrClass := &runtime.Class{Name: "[B", ArrayElem: "B"}
	buf := runtime.NewTypeArray(arrClass, 'B', 8)

	readBytes, _ := r.Lookup("java/io/FileInputStream", "readBytes", "([BII)I")
	ret, _, err := readBytes(env, []runtime.Value{
		runtime.RefValue(stream), runtime.RefValue(&runtime.Handle{Obj: buf}),
		runtime.IntValue(0), runtime.IntValue(8),
	})
	if err != nil {
		t.Fatalf("readBytes: %v", err)
	}
	if ret.Int() != 2 {
		t.Fatalf("readBytes: got %d bytes, want 2", ret.Int())
	}
	if buf.Elems[0].Int() != 'h' || buf.Elems[1].Int() != 'i' {
		t.Errorf("unexpected buffer contents: %v %v", buf.Elems[0].Int(), buf.Elems[1].Int())
	}

	close0, _ := r.Lookup("java/io/FileInputStream", "close0", "()V")
	if _, _, err := close0(env, []runtime.Value{runtime.RefValue(stream)}); err != nil {
		t.Fatalf("close0: %v", err)
	}
}
