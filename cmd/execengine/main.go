// Command execengine drives a pipeline file through the scheduler,
// printing live occupancy to the terminal and archiving job output to
// disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	cpuprofile = flag.String("cpuprofile", "", "path to store a CPU profile at")
	memprofile = flag.String("memprofile", "", "path to store a memory profile at")
)

func funcmain() error {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"run":     {run},
		"version": {version},
	}

	args := flag.Args()
	verb := "run"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		fmt.Fprintf(os.Stderr, "execengine [-flags] <command> [-flags] <args>\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\trun      - run a pipeline file to completion\n")
		fmt.Fprintf(os.Stderr, "\tversion  - print the execengine version\n")
		os.Exit(2)
	}

	ctx, canc := interruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: execengine <command> [options]\n")
		os.Exit(2)
	}

	err := v.fn(ctx, args)
	if *memprofile != "" {
		f, ferr := os.Create(*memprofile)
		if ferr != nil {
			return fmt.Errorf("could not create memory profile: %w", ferr)
		}
		defer f.Close()
		runtime.GC()
		if werr := pprof.WriteHeapProfile(f); werr != nil {
			return fmt.Errorf("could not write memory profile: %w", werr)
		}
	}
	atExitErr := runAtExit()
	if err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}

	return atExitErr
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
