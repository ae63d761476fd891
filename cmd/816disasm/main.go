// Package main implements the 65816 SNES ROM static analyzer/disassembler
// command line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/retroenv/retrogolib/log"

	"github.com/retro65816/disasm/internal/analysis"
	"github.com/retro65816/disasm/internal/app"
	"github.com/retro65816/disasm/internal/cli"
	"github.com/retro65816/disasm/internal/config"
	"github.com/retro65816/disasm/internal/loader"
	"github.com/retro65816/disasm/internal/options"
	"github.com/retro65816/disasm/internal/persistence"
	"github.com/retro65816/disasm/internal/query"
	"github.com/retro65816/disasm/internal/repl"
)

func main() {
	opts, err := cli.ParseFlags()
	if err != nil {
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			usageErr.ShowUsage()
			os.Exit(1)
		}
		fmt.Println(err)
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)

	if err := run(logger, opts); err != nil {
		logger.Error("disassembling failed", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, opts options.Program) error {
	l := loader.New()
	image, err := l.Load(opts.Input)
	if err != nil {
		return fmt.Errorf("loading ROM: %w", err)
	}

	app.PrintInfo(logger, opts, image)

	a := analysis.New(image, logger)

	if opts.SaveFile != "" {
		if err := loadSaveFileIfExists(a, opts.SaveFile); err != nil {
			return err
		}
	}

	a.Run()

	if opts.CallGraph != "" {
		return runCallGraph(a, opts)
	}

	if err := writeOutput(a, opts); err != nil {
		return err
	}

	if opts.Repl {
		if err := repl.Run(a, os.Stdout); err != nil {
			return fmt.Errorf("running query shell: %w", err)
		}
	}

	if opts.SaveFile != "" {
		if err := persistence.Save(a, opts.SaveFile); err != nil {
			return fmt.Errorf("saving user metadata: %w", err)
		}
	}
	return nil
}

func loadSaveFileIfExists(a *analysis.Analysis, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking save file %s: %w", path, err)
	}
	if err := persistence.Load(a, path); err != nil {
		return fmt.Errorf("loading save file: %w", err)
	}
	return nil
}

func runCallGraph(a *analysis.Analysis, opts options.Program) error {
	pc, err := strconv.ParseUint(opts.CallGraph, 16, 32)
	if err != nil {
		return fmt.Errorf("parsing callgraph address %q: %w", opts.CallGraph, err)
	}

	surfaceOut := os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", opts.Output, err)
		}
		defer func() { _ = f.Close() }()
		surfaceOut = f
	}

	s := query.New(a)
	_, err = fmt.Fprint(surfaceOut, s.CallGraphTree(uint32(pc)))
	return err
}

func writeOutput(a *analysis.Analysis, opts options.Program) error {
	outputFile := os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", opts.Output, err)
		}
		defer func() { _ = f.Close() }()
		outputFile = f
	}

	if err := app.WriteDisassembly(outputFile, a); err != nil {
		return fmt.Errorf("writing disassembly: %w", err)
	}
	if err := app.WriteUnresolved(outputFile, a); err != nil {
		return fmt.Errorf("writing unresolved subroutines: %w", err)
	}
	return nil
}
