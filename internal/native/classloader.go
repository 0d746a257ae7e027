package native

import "github.com/mtanaka/corevm/internal/runtime"

// registerClassLoaderNatives implements java/lang/ClassLoader's native
// surface, transliterated from
// crates/vm/src/native/java_lang_ClassLoader.rs: registerNatives is a
// no-op, findBuiltinLib always reports no native library (spec.md §6: "no
// dynamic library loading is required by this core"), and
// findLoadedClass0/findBootstrapClass both resolve through the single
// process-wide Dictionary.
//
// findBootstrapClass deliberately duplicates findLoadedClass0's body as its
// own standalone function rather than forwarding to it. The original
// Rust source flags its own findBootstrapClass with "fixme: is this
// correct?" because it blindly delegates to findLoadedClass0 without
// explaining why that's acceptable for a bootstrap-tier lookup. This VM
// never materializes user-defined ClassLoader objects — there is exactly
// one loader tier, so both entry points legitimately consult the same
// Dictionary — but keeping them as separate functions (rather than one
// calling the other) means a second loader tier could later change one
// without silently changing the other.
func registerClassLoaderNatives(r *Registry) {
	r.Register("java/lang/ClassLoader", "registerNatives", "()V", noop)

	r.Register("java/lang/ClassLoader", "findBuiltinLib", "(Ljava/lang/String;)Ljava/lang/String;",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			return runtime.NullValue(), true, nil
		})

	r.Register("java/lang/ClassLoader", "findLoadedClass0", "(Ljava/lang/String;)Ljava/lang/Class;",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			return mirrorOrNull(env, args[1])
		})

	r.Register("java/lang/ClassLoader", "findBootstrapClass", "(Ljava/lang/String;)Ljava/lang/Class;",
		func(env *Env, args []runtime.Value) (runtime.Value, bool, error) {
			return mirrorOrNull(env, args[1])
		})
}

func mirrorOrNull(env *Env, nameArg runtime.Value) (runtime.Value, bool, error) {
	name, ok := ExtractString(nameArg)
	if !ok {
		return runtime.NullValue(), true, nil
	}
	internalName := dotsToSlashes(name)
	class, ok := env.Dictionary.Find(internalName)
	if !ok {
		return runtime.NullValue(), true, nil
	}
	mirror := env.Dictionary.MirrorOf(class)
	return runtime.RefValue(&runtime.Handle{Obj: mirror}), true, nil
}

func dotsToSlashes(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '.' {
			b[i] = '/'
		}
	}
	return string(b)
}
