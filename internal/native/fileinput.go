package native

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mtanaka/corevm/internal/runtime"
)

// fdTable hands back the small integers this VM uses as FileInputStream's
// `fd` field value, transliterated from
// crates/vm/src/native/java_io_FileInputStream.rs's control flow: open via
// Go's os.OpenFile instead of libc open(2), available via os.Stat/Seek
// instead of fstat/ioctl/lseek, close via os.File.Close — Go has no libc
// FFI layer to adapt here, just the standard os package doing the same job.
type fdTable struct {
	mu    sync.Mutex
	files map[int32]*os.File
	next  int32
}

var files = &fdTable{files: make(map[int32]*os.File), next: 3} // 0,1,2 reserved for stdio

func (t *fdTable) open(path string) (int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.files[fd] = f
	return fd, nil
}

func (t *fdTable) get(fd int32) (*os.File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	return f, ok
}

func (t *fdTable) close(fd int32) error {
	t.mu.Lock()
	f, ok := t.files[fd]
	delete(t.files, fd)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return f.Close()
}

func registerFileInputStreamNatives(r *Registry) {
	r.Register("java/io/FileInputStream", "initIDs", "()V", noop)

	r.Register("java/io/FileInputStream", "open0", "(Ljava/lang/String;)V",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			receiver := args[0].Ref()
			path, ok := ExtractString(args[1])
			if !ok {
				return runtime.Value{}, false, fmt.Errorf("native: FileInputStream.open0: bad path argument")
			}
			fd, err := files.open(path)
			if err != nil {
				return runtime.Value{}, false, newThrowable("java/io/FileNotFoundException", err.Error())
			}
			setFdField(receiver, fd)
			return runtime.Value{}, false, nil
		})

	r.Register("java/io/FileInputStream", "readBytes", "([BII)I",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			fd := fdField(args[0].Ref())
			f, ok := files.get(fd)
			if !ok {
				return runtime.Value{}, false, newThrowable("java/io/IOException", "stream closed")
			}
			arr, ok := args[1].Ref().Obj.(*runtime.TypeArray)
			if !ok {
				return runtime.Value{}, false, fmt.Errorf("native: FileInputStream.readBytes: not a byte[]")
			}
			off, length := int(args[2].Int()), int(args[3].Int())
			buf := make([]byte, length)
			n, err := f.Read(buf)
			if n == 0 && err != nil {
				return runtime.IntValue(-1), true, nil
			}
			for i := 0; i < n; i++ {
				arr.Elems[off+i] = runtime.IntValue(int32(int8(buf[i])))
			}
			return runtime.IntValue(int32(n)), true, nil
		})

	r.Register("java/io/FileInputStream", "available0", "()I",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			fd := fdField(args[0].Ref())
			f, ok := files.get(fd)
			if !ok {
				return runtime.IntValue(0), true, nil
			}
			pos, err1 := f.Seek(0, io.SeekCurrent)
			stat, err2 := f.Stat()
			if err1 != nil || err2 != nil {
				return runtime.IntValue(0), true, nil
			}
			remaining := stat.Size() - pos
			if remaining < 0 {
				remaining = 0
			}
			return runtime.IntValue(int32(remaining)), true, nil
		})

	r.Register("java/io/FileInputStream", "close0", "()V",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			fd := fdField(args[0].Ref())
			return runtime.Value{}, false, files.close(fd)
		})
}

// setFdField/fdField stash the native fd as a field named "fd" on the
// FileInputStream instance. Real JDK FileDescriptor objects are a layer
// deeper than this VM models; storing the fd directly on the stream is the
// simplification spec.md §9 accepts for file I/O natives.
func setFdField(h *runtime.Handle, fd int32) {
	inst, ok := h.Obj.(*runtime.Instance)
	if !ok {
		return
	}
	if f, ok := inst.Class().FindInstanceField("fd", "I"); ok {
		inst.SetField(f.Index, runtime.IntValue(fd))
		return
	}
	// No declared "fd" field in the classpath's FileInputStream shape:
	// fall back to field 0, matching how this VM tolerates a minimal
	// Throwable shape elsewhere (spec.md §9).
	if inst.Class() != nil && len(inst.Class().InstanceFields) > 0 {
		inst.SetField(0, runtime.IntValue(fd))
	}
}

func fdField(h *runtime.Handle) int32 {
	inst, ok := h.Obj.(*runtime.Instance)
	if !ok {
		return -1
	}
	if f, ok := inst.Class().FindInstanceField("fd", "I"); ok {
		return inst.GetField(f.Index).Int()
	}
	if inst.Class() != nil && len(inst.Class().InstanceFields) > 0 {
		return inst.GetField(0).Int()
	}
	return -1
}
