// Package persistence implements the opaque save/load hook for an
// Analysis's user data: the entry-point set, per-site assertions, per-PC
// comments, custom labels, and jump-table definitions. Derived data is
// never persisted; Load reconstructs it by triggering a fresh Run.
package persistence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/retro65816/disasm/internal/analysis"
	"github.com/retro65816/disasm/internal/assertion"
	"github.com/retro65816/disasm/internal/jumptable"
	"github.com/retro65816/disasm/internal/state"
)

// document is the on-disk shape of a save file: the five persisted fields
// of Analysis's user data, flattened from maps into slices of records so
// they round-trip through YAML without depending on map key ordering.
type document struct {
	EntryPoints   []entryPointRecord `yaml:"entry_points"`
	Assertions    []assertionRecord  `yaml:"assertions"`
	Comments      []commentRecord    `yaml:"comments"`
	CustomLabels  []labelRecord      `yaml:"custom_labels"`
	JumpTableDefs []jumpTableRecord  `yaml:"jump_tables"`
}

type entryPointRecord struct {
	Label string `yaml:"label"`
	PC    uint32 `yaml:"pc"`
	M     bool   `yaml:"m"`
	X     bool   `yaml:"x"`
}

type assertionRecord struct {
	PC           uint32 `yaml:"pc"`
	SubroutinePC uint32 `yaml:"subroutine_pc"`
	Type         int    `yaml:"type"`
	Unknown      bool   `yaml:"unknown"`
	Reason       int    `yaml:"reason"`
	MSet         bool   `yaml:"m_set"`
	M            bool   `yaml:"m"`
	XSet         bool   `yaml:"x_set"`
	X            bool   `yaml:"x"`
}

type commentRecord struct {
	PC           uint32 `yaml:"pc"`
	SubroutinePC uint32 `yaml:"subroutine_pc"`
	Text         string `yaml:"text"`
}

type labelRecord struct {
	PC           uint32 `yaml:"pc"`
	SubroutinePC uint32 `yaml:"subroutine_pc"`
	Label        string `yaml:"label"`
}

type jumpTableRecord struct {
	CallerPC uint32 `yaml:"caller_pc"`
	Start    uint32 `yaml:"start"`
	End      uint32 `yaml:"end"`
	Status   int    `yaml:"status"`
}

// Save writes a's user data to path as a YAML document.
func Save(a *analysis.Analysis, path string) error {
	doc := toDocument(a)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling save file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing save file %s: %w", path, err)
	}
	return nil
}

// Load reads path and applies its user data onto a, then re-runs a so the
// derived data (instructions, subroutines, references) reflects it.
func Load(a *analysis.Analysis, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading save file %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshaling save file: %w", err)
	}

	applyDocument(a, doc)
	a.Run()
	return nil
}

func toDocument(a *analysis.Analysis) document {
	var doc document

	for _, ep := range a.EntryPoints() {
		doc.EntryPoints = append(doc.EntryPoints, entryPointRecord{
			Label: ep.Label,
			PC:    ep.PC,
			M:     ep.InitialState.M,
			X:     ep.InitialState.X,
		})
	}

	for pair, ast := range a.Assertions() {
		rec := assertionRecord{
			PC:           pair.PC,
			SubroutinePC: pair.SubroutinePC,
			Type:         int(ast.Type),
			Unknown:      ast.Change.Unknown(),
			Reason:       int(ast.Change.Reason),
		}
		if ast.Change.M != nil {
			rec.MSet = true
			rec.M = *ast.Change.M
		}
		if ast.Change.X != nil {
			rec.XSet = true
			rec.X = *ast.Change.X
		}
		doc.Assertions = append(doc.Assertions, rec)
	}

	for pair, text := range a.Comments() {
		doc.Comments = append(doc.Comments, commentRecord{
			PC:           pair.PC,
			SubroutinePC: pair.SubroutinePC,
			Text:         text,
		})
	}

	for pair, label := range a.CustomLabels() {
		doc.CustomLabels = append(doc.CustomLabels, labelRecord{
			PC:           pair.PC,
			SubroutinePC: pair.SubroutinePC,
			Label:        label,
		})
	}

	for callerPC, def := range a.JumpTableDefinitions() {
		doc.JumpTableDefs = append(doc.JumpTableDefs, jumpTableRecord{
			CallerPC: callerPC,
			Start:    def.Start,
			End:      def.End,
			Status:   int(def.Status),
		})
	}

	return doc
}

func applyDocument(a *analysis.Analysis, doc document) {
	for _, rec := range doc.EntryPoints {
		a.AddEntryPoint(rec.Label, rec.PC, state.State{M: rec.M, X: rec.X})
	}

	for _, rec := range doc.Assertions {
		change := state.Empty()
		if rec.Unknown {
			change = state.FromUnknown(state.UnknownReason(rec.Reason))
		} else {
			var m, x *bool
			if rec.MSet {
				v := rec.M
				m = &v
			}
			if rec.XSet {
				v := rec.X
				x = &v
			}
			change = state.FromValues(m, x)
		}
		a.AddAssertion(rec.PC, rec.SubroutinePC, assertion.Assertion{
			Type:   assertion.Type(rec.Type),
			Change: change,
		})
	}

	for _, rec := range doc.Comments {
		a.SetComment(rec.PC, rec.SubroutinePC, rec.Text)
	}

	for _, rec := range doc.CustomLabels {
		a.RenameLabel(rec.Label, rec.PC, rec.SubroutinePC)
	}

	for _, rec := range doc.JumpTableDefs {
		a.DefineJumpTable(rec.CallerPC, rec.Start, rec.End, jumptable.Status(rec.Status))
	}
}
