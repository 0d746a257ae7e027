package native

// RegisterStandardLibrary wires every native implemented by this package
// into r, the minimum java.* surface spec.md §4.6 and §6 require.
func RegisterStandardLibrary(r *Registry) {
	registerObjectNatives(r)
	registerSystemNatives(r)
	registerClassLoaderNatives(r)
	registerFileInputStreamNatives(r)
	registerThreadNatives(r)
	registerPrintStreamNatives(r)
}
