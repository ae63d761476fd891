// Package render turns analysis results into human-facing text: currently
// just the subroutine call graph, rendered as an indented tree.
package render

import (
	"fmt"

	"github.com/xlab/treeprint"

	"github.com/retro65816/disasm/internal/analysis"
)

// CallGraphTree renders the call graph reachable from root as an indented
// tree: each node is a subroutine, labeled, with one child per distinct
// subroutine it calls or jumps into. A subroutine reached more than once
// from the same ancestor chain is rendered once with "(recursion)" appended
// rather than expanded again, since the graph is not acyclic in general.
func CallGraphTree(a *analysis.Analysis, root uint32) string {
	visited := make(map[uint32]bool)
	tree := buildNode(a, root, visited)
	return tree.String()
}

func buildNode(a *analysis.Analysis, pc uint32, ancestors map[uint32]bool) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(nodeLabel(a, pc))

	if ancestors[pc] {
		return tree
	}
	ancestors[pc] = true
	defer delete(ancestors, pc)

	for _, target := range a.CalleesOf(pc) {
		if ancestors[target] {
			recursed := treeprint.New()
			recursed.SetValue(nodeLabel(a, target) + " (recursion)")
			tree.AddNode(recursed.String())
			continue
		}
		child := buildNode(a, target, ancestors)
		tree.AddNode(child.String())
	}
	return tree
}

func nodeLabel(a *analysis.Analysis, pc uint32) string {
	if label, ok := a.Label(pc, 0); ok {
		return fmt.Sprintf("%s ($%06X)", label, pc)
	}
	return fmt.Sprintf("$%06X", pc)
}
