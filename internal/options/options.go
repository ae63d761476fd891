// Package options contains the program options.
package options

// Program options of the disassembler.
type Program struct {
	Input     string `flag:"i" usage:"input ROM file"`
	Output    string `flag:"o" usage:"output disassembly file (default: stdout)"`
	SaveFile  string `flag:"save" usage:"user metadata file to load on startup and write on exit"`
	CallGraph string `flag:"callgraph" usage:"print the call graph rooted at this hex address (e.g. 8000) and exit"`

	Repl  bool `flag:"repl" usage:"start an interactive query shell after analysis"`
	Debug bool `flag:"debug" usage:"enable debug logging"`
	Quiet bool `flag:"q" usage:"quiet mode"`
}
