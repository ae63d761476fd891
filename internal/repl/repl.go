// Package repl implements an interactive query shell standing in for the
// GUI's command-entry widget during CLI-only use: it accepts a handful of
// commands that call straight through to Analysis's §4.7 mutators and the
// query surface, then re-runs the analysis so a mutation's effect is
// immediately visible to the next query.
package repl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/retro65816/disasm/internal/analysis"
	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/jumptable"
	"github.com/retro65816/disasm/internal/query"
	"github.com/retro65816/disasm/internal/state"
)

var reasonsByName = map[string]state.UnknownReason{
	"unknown":              state.Unknown,
	"suspectinstruction":   state.SuspectInstruction,
	"multiplereturnstates": state.MultipleReturnStates,
	"indirectjump":         state.IndirectJump,
	"stackmanipulation":    state.StackManipulation,
	"recursion":            state.Recursion,
	"mutablecode":          state.MutableCode,
}

// Run starts the interactive query shell over a, reading commands from
// stdin/stdout through a line-edited prompt with history, until the user
// types "exit", "quit", or sends EOF.
func Run(a *analysis.Analysis, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "816disasm> ",
		HistoryFile: "/tmp/816disasm_history.txt",
	})
	if err != nil {
		return fmt.Errorf("starting query shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := dispatch(a, out, line); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func dispatch(a *analysis.Analysis, out io.Writer, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	s := query.New(a)

	switch cmd {
	case "sub":
		return cmdSub(s, out, args)
	case "refs":
		return cmdRefs(s, out, args)
	case "label":
		return cmdLabel(s, out, args)
	case "assert":
		return cmdAssert(a, out, args)
	case "unassert":
		return cmdUnassert(a, out, args)
	case "jumptable":
		return cmdJumpTable(a, out, args)
	case "stats":
		return cmdStats(s, out)
	case "callgraph":
		return cmdCallGraph(s, out, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdSub(s query.Surface, out io.Writer, args []string) error {
	pc, err := parseAddr(args, 0)
	if err != nil {
		return err
	}
	insts := s.InstructionsAt(pc)
	if len(insts) == 0 {
		return fmt.Errorf("no subroutine at $%06X", pc)
	}
	label, _ := s.Label(pc, 0)
	fmt.Fprintf(out, "%s ($%06X): %d instructions\n", label, pc, len(insts))
	return nil
}

func cmdRefs(s query.Surface, out io.Writer, args []string) error {
	pc, err := parseAddr(args, 0)
	if err != nil {
		return err
	}
	for _, src := range s.ReferencesTo(pc) {
		fmt.Fprintf(out, "$%06X\n", src)
	}
	return nil
}

func cmdLabel(s query.Surface, out io.Writer, args []string) error {
	pc, err := parseAddr(args, 0)
	if err != nil {
		return err
	}
	label, ok := s.Label(pc, 0)
	if !ok {
		return fmt.Errorf("no label at $%06X", pc)
	}
	fmt.Fprintln(out, label)
	return nil
}

// cmdAssert handles: assert <pc> <subroutinePC> <inst|sub> <empty|unknown:<reason>|m<0|1>,x<0|1>>
func cmdAssert(a *analysis.Analysis, out io.Writer, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: assert <pc> <subroutinePC> <inst|sub> <empty|unknown:<reason>|m<0|1>,x<0|1>>")
	}
	pc, err := strconv.ParseUint(args[0], 16, 32)
	if err != nil {
		return fmt.Errorf("parsing pc: %w", err)
	}
	subPC, err := strconv.ParseUint(args[1], 16, 32)
	if err != nil {
		return fmt.Errorf("parsing subroutinePC: %w", err)
	}

	var typ assertion.Type
	switch args[2] {
	case "inst":
		typ = assertion.InstructionScope
	case "sub":
		typ = assertion.SubroutineScope
	default:
		return fmt.Errorf("scope must be inst or sub, got %q", args[2])
	}

	change, err := parseChange(args[3])
	if err != nil {
		return err
	}

	a.AddAssertion(uint32(pc), uint32(subPC), assertion.Assertion{Type: typ, Change: change})
	a.Run()
	fmt.Fprintln(out, "ok")
	return nil
}

func cmdUnassert(a *analysis.Analysis, out io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: unassert <pc> <subroutinePC>")
	}
	pc, err := strconv.ParseUint(args[0], 16, 32)
	if err != nil {
		return fmt.Errorf("parsing pc: %w", err)
	}
	subPC, err := strconv.ParseUint(args[1], 16, 32)
	if err != nil {
		return fmt.Errorf("parsing subroutinePC: %w", err)
	}
	a.RemoveAssertion(uint32(pc), uint32(subPC))
	a.Run()
	fmt.Fprintln(out, "ok")
	return nil
}

// cmdJumpTable handles: jumptable <callerPC> <start> <end> <unknown|partial|complete>
func cmdJumpTable(a *analysis.Analysis, out io.Writer, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: jumptable <callerPC> <start> <end> <unknown|partial|complete>")
	}
	callerPC, err := strconv.ParseUint(args[0], 16, 32)
	if err != nil {
		return fmt.Errorf("parsing callerPC: %w", err)
	}
	start, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("parsing start: %w", err)
	}
	end, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("parsing end: %w", err)
	}

	var status jumptable.Status
	switch args[3] {
	case "unknown":
		status = jumptable.Unknown
	case "partial":
		status = jumptable.Partial
	case "complete":
		status = jumptable.Complete
	default:
		return fmt.Errorf("status must be unknown, partial, or complete, got %q", args[3])
	}

	a.DefineJumpTable(uint32(callerPC), uint32(start), uint32(end), status)
	a.Run()
	fmt.Fprintln(out, "ok")
	return nil
}

func cmdStats(s query.Surface, out io.Writer) error {
	stats := s.Statistics()
	fmt.Fprintf(out, "subroutines=%d instructions=%d unresolved=%d\n",
		stats.Subroutines, stats.Instructions, stats.UnresolvedCount)
	return nil
}

func cmdCallGraph(s query.Surface, out io.Writer, args []string) error {
	pc, err := parseAddr(args, 0)
	if err != nil {
		return err
	}
	fmt.Fprint(out, s.CallGraphTree(pc))
	return nil
}

func parseAddr(args []string, index int) (uint32, error) {
	if index >= len(args) {
		return 0, fmt.Errorf("missing address argument")
	}
	pc, err := strconv.ParseUint(args[index], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing address %q: %w", args[index], err)
	}
	return uint32(pc), nil
}

// parseChange parses the change half of an assert command: "empty",
// "unknown:<reasonName>", or a comma-separated "m0"/"m1"/"x0"/"x1" list.
func parseChange(spec string) (state.Change, error) {
	if spec == "empty" {
		return state.Empty(), nil
	}
	if reason, ok := strings.CutPrefix(spec, "unknown:"); ok {
		r, ok := reasonsByName[strings.ToLower(reason)]
		if !ok {
			return state.Change{}, fmt.Errorf("unknown reason %q", reason)
		}
		return state.FromUnknown(r), nil
	}

	var m, x *bool
	for _, tok := range strings.Split(spec, ",") {
		if len(tok) < 2 {
			return state.Change{}, fmt.Errorf("malformed change token %q", tok)
		}
		v := tok[1] == '1'
		switch tok[0] {
		case 'm':
			m = &v
		case 'x':
			x = &v
		default:
			return state.Change{}, fmt.Errorf("malformed change token %q", tok)
		}
	}
	return state.FromValues(m, x), nil
}
