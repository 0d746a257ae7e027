// Command corevm runs a single Java class's main method to completion.
//
// Usage:
//
//	corevm -cp <classpath> <MainClass> [args...]
//
// This is the teacher's cmd/gojvm/main.go generalized from a bare
// "gojvm <classfile>" to the classpath-plus-main-class-name form spec.md §6
// and SPEC_FULL.md §12 call for, with an uncaught exception now reported as
// a full synthesized backtrace rather than a bare error string.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mtanaka/corevm/internal/classpath"
	"github.com/mtanaka/corevm/internal/runtime"
	"github.com/mtanaka/corevm/internal/vm"
)

func main() {
	cp := flag.String("cp", "", "classpath: ':'-separated list of directories and jar/jmod archives")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -cp <classpath> <MainClass> [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	mainClass, programArgs := args[0], args[1:]

	classpathStr := *cp
	if classpathStr == "" {
		classpathStr = "."
	}

	resolver, err := classpath.NewResolver(classpathStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corevm: %v\n", err)
		os.Exit(1)
	}

	dict := runtime.NewDictionary(resolver)
	machine := vm.New(dict)

	if err := machine.Execute(mainClass, programArgs); err != nil {
		reportUncaught(err)
		os.Exit(1)
	}
}

// reportUncaught prints an uncaught exception the way a real JVM's default
// UncaughtExceptionHandler does: "Exception in thread ... Class: message"
// followed by one "at Class.method(Line)" line per synthesized frame, or,
// for a VM-internal (non-Throw) error, the teacher's bare "Error executing:
// %v" line.
func reportUncaught(err error) {
	thrown, ok := err.(*vm.Throw)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error executing: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Exception in thread \"main\" %s\n", thrown.Error())
	for _, frame := range thrown.Trace {
		fmt.Fprintf(os.Stderr, "\tat %s.%s(line %d)\n", frame.Class, frame.Method, frame.Line)
	}
}
