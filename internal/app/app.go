// Package app provides the main application helpers for the disassembler:
// banners, the enhanced disassembly writer, and the unresolved-subroutines
// summary described in the external interfaces.
package app

import (
	"fmt"
	"io"
	"sort"

	"github.com/retroenv/retrogolib/log"

	"github.com/retro65816/disasm/internal/analysis"
	"github.com/retro65816/disasm/internal/options"
	"github.com/retro65816/disasm/internal/rom"
)

// mnemonicColumn is the column the "; $<pc>" trailer starts at.
const mnemonicColumn = 30

// PrintInfo logs the ROM image's discovered layout and header facts.
func PrintInfo(logger *log.Logger, opts options.Program, image *rom.ROM) {
	if opts.Quiet {
		return
	}

	logger.Info("Processing SNES ROM",
		log.String("file", opts.Input),
		log.String("type", image.Type().String()),
		log.String("title", image.Title()),
		log.Uint32("reset", image.ResetVector()),
		log.Uint32("nmi", image.NMIVector()),
	)
}

// WriteDisassembly writes the enhanced disassembly listing to w: every
// decoded instruction as "<mnemonic><arg>" padded to mnemonicColumn columns,
// followed by "; $<pc>", one per line, in ascending PC order.
func WriteDisassembly(w io.Writer, a *analysis.Analysis) error {
	pcs := instructionPCs(a)

	for _, pc := range pcs {
		insts := a.InstructionsAt(pc)
		if len(insts) == 0 {
			continue
		}
		inst := insts[0]

		line := inst.Op().String() + " " + inst.ArgumentString(a, true)
		for len(line) < mnemonicColumn {
			line += " "
		}
		if _, err := fmt.Fprintf(w, "%s; $%06X\n", line, pc); err != nil {
			return fmt.Errorf("writing disassembly line: %w", err)
		}
	}
	return nil
}

func instructionPCs(a *analysis.Analysis) []uint32 {
	seen := make(map[uint32]bool)
	var pcs []uint32
	for pc, sub := range a.Subroutines().Items() {
		if !seen[pc] {
			seen[pc] = true
			pcs = append(pcs, pc)
		}
		for instPC := range sub.Instructions() {
			if !seen[instPC] {
				seen[instPC] = true
				pcs = append(pcs, instPC)
			}
		}
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

// WriteUnresolved writes the one unresolved-subroutines list required by
// the external interfaces: every subroutine with at least one exit recorded
// as an unknown state change, labeled and with its unknown reasons.
func WriteUnresolved(w io.Writer, a *analysis.Analysis) error {
	pcs := a.UnresolvedSubroutines()
	if len(pcs) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w, "; unresolved subroutines:"); err != nil {
		return fmt.Errorf("writing unresolved header: %w", err)
	}
	for _, pc := range pcs {
		sub := a.Subroutine(pc)
		if _, err := fmt.Fprintf(w, ";   %s ($%06X):", sub.Label, pc); err != nil {
			return fmt.Errorf("writing unresolved entry: %w", err)
		}
		for exitPC, change := range sub.UnknownStateChanges() {
			if _, err := fmt.Fprintf(w, " $%06X=%s", exitPC, change.String()); err != nil {
				return fmt.Errorf("writing unresolved reason: %w", err)
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return fmt.Errorf("writing unresolved line break: %w", err)
		}
	}
	return nil
}
