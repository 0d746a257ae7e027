// Package classpath resolves binary class names to class-file bytes across
// an ordered list of directory and archive entries, the Go counterpart of
// the teacher's JmodClassLoader/UserClassLoader pair and of the original
// implementation's class_path_manager.rs. Unlike the teacher's two-loader
// split, this VM has a single bootstrap tier (spec.md §9's Open Question;
// see DESIGN.md), so one Resolver walks every entry in classpath order and
// returns the first hit.
package classpath

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no entry on the path contains the class.
var ErrNotFound = errors.New("classpath: class not found")

// Source is one element of a classpath: a directory or an archive.
type Source interface {
	// find returns the class-file bytes for the given binary name
	// (slash-separated, no ".class" suffix), or ErrNotFound.
	find(binaryName string) ([]byte, error)
	// origin describes this source for diagnostics and Resolve's second
	// return value.
	origin() string
}

// Resolver walks an ordered list of Sources, the same linear-scan
// semantics as search_class in class_path_manager.rs.
type Resolver struct {
	sources []Source
}

// NewResolver builds a Resolver from a classpath string using the
// platform list separator (os.PathListSeparator), mirroring
// add_class_paths. Entries that are directories become DirSource;
// entries that are files are opened as zip archives (covering both .jar
// and .jmod layouts, since jmod's "classes/" prefix is just another path
// component, which ArchiveSource.find prepends to the entry name it looks up).
func NewResolver(classpath string) (*Resolver, error) {
	r := &Resolver{}
	if classpath == "" {
		return r, nil
	}
	for _, entry := range strings.Split(classpath, string(os.PathListSeparator)) {
		if entry == "" {
			continue
		}
		if err := r.Add(entry); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends one path entry to the resolver, in search order.
func (r *Resolver) Add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("classpath: adding %s: %w", path, err)
	}
	if info.IsDir() {
		r.sources = append(r.sources, &DirSource{root: path})
		return nil
	}
	src, err := newArchiveSource(path)
	if err != nil {
		return fmt.Errorf("classpath: adding %s: %w", path, err)
	}
	r.sources = append(r.sources, src)
	return nil
}

// Resolve returns the class-file bytes for a binary class name (e.g.
// "java/lang/Object") and the origin it was found under, trying each
// source in the order it was added and stopping at the first hit.
func (r *Resolver) Resolve(binaryName string) ([]byte, string, error) {
	for _, src := range r.sources {
		data, err := src.find(binaryName)
		if err == nil {
			return data, src.origin(), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNotFound, binaryName)
}

// Len reports how many sources are on the path.
func (r *Resolver) Len() int { return len(r.sources) }

// DirSource resolves classes from an exploded directory tree.
type DirSource struct {
	root string
}

func (d *DirSource) origin() string { return d.root }

func (d *DirSource) find(binaryName string) ([]byte, error) {
	path := filepath.Join(d.root, filepath.FromSlash(binaryName)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("classpath: reading %s: %w", path, err)
	}
	return data, nil
}

// ArchiveSource resolves classes from a jar or jmod file. The zip.Reader
// is built once and reused; access is guarded by a mutex because Resolve
// may be called concurrently by multiple VM threads loading classes at
// once (spec.md §4.2 requires the dictionary to serialize concurrent
// loads of the same name, but distinct names may load in parallel and
// all share this one archive handle).
type ArchiveSource struct {
	path   string
	mu     sync.Mutex
	reader *zip.Reader
	// prefix is stripped from entry names before matching; jmod archives
	// store class files under "classes/" while jar archives do not.
	prefix string
}

func newArchiveSource(path string) (*ArchiveSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	data := make([]byte, stat.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	prefix := ""
	if strings.HasSuffix(path, ".jmod") {
		// jmod files are a zip archive with a 4-byte "JM\x01\x00" magic
		// header prepended and class files stored under "classes/".
		data = data[4:]
		prefix = "classes/"
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	return &ArchiveSource{path: path, reader: reader, prefix: prefix}, nil
}

func (a *ArchiveSource) origin() string { return a.path }

func (a *ArchiveSource) find(binaryName string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := a.prefix + binaryName + ".class"
	for _, file := range a.reader.File {
		if file.Name != target {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("classpath: opening %s in %s: %w", target, a.path, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("classpath: reading %s in %s: %w", target, a.path, err)
		}
		return data, nil
	}
	return nil, ErrNotFound
}
