package classpath

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeDirClass(t *testing.T, root, binaryName string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(binaryName)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func writeJar(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jar: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func TestDirSourceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeDirClass(t, dir, "Hello", []byte("hello-bytes"))

	r := &Resolver{}
	if err := r.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}

	data, origin, err := r.Resolve("Hello")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "hello-bytes" {
		t.Errorf("data: got %q, want %q", data, "hello-bytes")
	}
	if origin != dir {
		t.Errorf("origin: got %q, want %q", origin, dir)
	}
}

func TestJarSource(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "lib.jar")
	writeJar(t, jarPath, map[string][]byte{
		"java/lang/Object.class": []byte("object-bytes"),
	})

	r := &Resolver{}
	if err := r.Add(jarPath); err != nil {
		t.Fatalf("Add: %v", err)
	}

	data, _, err := r.Resolve("java/lang/Object")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "object-bytes" {
		t.Errorf("data: got %q, want %q", data, "object-bytes")
	}
}

func TestJmodPrefixStripped(t *testing.T) {
	dir := t.TempDir()
	jmodPath := filepath.Join(dir, "java.base.jmod")

	f, err := os.Create(jmodPath)
	if err != nil {
		t.Fatalf("create jmod: %v", err)
	}
	if _, err := f.Write([]byte("JM\x01\x00")); err != nil {
		t.Fatalf("write magic: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("classes/java/lang/Integer.class")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte("integer-bytes")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	f.Close()

	r := &Resolver{}
	if err := r.Add(jmodPath); err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, _, err := r.Resolve("java/lang/Integer")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "integer-bytes" {
		t.Errorf("data: got %q, want %q", data, "integer-bytes")
	}
}

func TestResolveOrderAndNotFound(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeDirClass(t, second, "Shadowed", []byte("second"))
	writeDirClass(t, first, "Shadowed", []byte("first"))

	r := &Resolver{}
	if err := r.Add(first); err != nil {
		t.Fatalf("Add first: %v", err)
	}
	if err := r.Add(second); err != nil {
		t.Fatalf("Add second: %v", err)
	}

	data, _, err := r.Resolve("Shadowed")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("expected first entry to win, got %q", data)
	}

	if _, _, err := r.Resolve("DoesNotExist"); err == nil {
		t.Error("expected error for missing class, got nil")
	}
}

func TestNewResolverSplitsPathListSeparator(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeDirClass(t, a, "A", []byte("a"))
	writeDirClass(t, b, "B", []byte("b"))

	cp := a + string(os.PathListSeparator) + b
	r, err := NewResolver(cp)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", r.Len())
	}
	if _, _, err := r.Resolve("A"); err != nil {
		t.Errorf("Resolve A: %v", err)
	}
	if _, _, err := r.Resolve("B"); err != nil {
		t.Errorf("Resolve B: %v", err)
	}
}
