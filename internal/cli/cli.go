// Package cli handles command line interface logic.
package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/retro65816/disasm/internal/options"
)

// ParseFlags parses command line flags and returns the program options.
func ParseFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || len(args) == 0 {
		return opts, &UsageError{flags: flags}
	}

	opts.Input = args[0]
	return opts, nil
}

// UsageError represents an error that should show usage information.
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "missing ROM file argument"
}

// ShowUsage prints the flag set's usage information.
func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: 816disasm [options] <ROM file>\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Output, "o", "", "name of the output disassembly file, printed on console if no name given")
	flags.StringVar(&opts.SaveFile, "save", "", "user metadata file to load on startup and write on exit")
	flags.StringVar(&opts.CallGraph, "callgraph", "", "print the call graph rooted at this hex address (e.g. 8000) and exit")
	flags.BoolVar(&opts.Repl, "repl", false, "start an interactive query shell after analysis")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
