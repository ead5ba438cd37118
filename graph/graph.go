// Package graph builds and caches the depth-robust graph and Feistel
// expander that back a stacked layered encoding: for each node, a sorted
// set of DRG ("base") parents and a set of expander parents, plus the
// reverse expander adjacency needed to traverse layers backwards.
package graph

import (
	"fmt"

	"github.com/nicola/r2/hazmat/feistel"
)

// Graph holds the per-node parent arrays for one (Nodes, BaseParents,
// ExpParents, Seed) configuration. Once built it is immutable; callers may
// share a single *Graph across concurrent readers.
type Graph struct {
	Nodes       int
	BaseParents int
	ExpParents  int
	Seed        [7]uint32

	bas [][5]int
	exp [][8]int
	rev [][8]int
}

// Build constructs a new Graph for the given configuration. It is the only
// way to produce a *Graph other than loading one from a cache file
// (LoadOrBuild).
func Build(nodes, baseParents, expParents int, seed [7]uint32) (*Graph, error) {
	if baseParents != 5 || expParents != 8 {
		return nil, fmt.Errorf("graph: unsupported degree (base=%d, exp=%d), only (5,8) is implemented", baseParents, expParents)
	}

	g := &Graph{
		Nodes:       nodes,
		BaseParents: baseParents,
		ExpParents:  expParents,
		Seed:        seed,
		bas:         make([][5]int, nodes),
		exp:         make([][8]int, nodes),
		rev:         make([][8]int, nodes),
	}

	pre := feistel.Precompute(feistel.Index(nodes * expParents))
	fillCount := make([]int, nodes)
	real := make([][8]bool, nodes)

	for v := 0; v < nodes; v++ {
		g.bas[v] = bucketSample(v, baseParents, seed)
		g.exp[v], real[v] = expanderParents(v, expParents, nodes, pre)
	}

	// Reverse adjacency is built only from genuine forward edges: a
	// filtered slot is zero-padded in exp (and the encoder absorbs that
	// zero, see graph/expander.go), but it is not itself an edge into node
	// 0, so it must not also appear in node 0's reverse row.
	for v := 0; v < nodes; v++ {
		for i, w := range g.exp[v] {
			if !real[v][i] {
				continue
			}
			if fillCount[w] >= expParents {
				panic(fmt.Sprintf("graph: exp_reversed overflow at node %d (slot %d)", w, i))
			}
			g.rev[w][fillCount[w]] = v
			fillCount[w]++
		}
	}

	return g, nil
}

// Bas returns node v's sorted DRG parent indices.
func (g *Graph) Bas(v int) [5]int { return g.bas[v] }

// Exp returns node v's forward expander parent indices (0-padded slots for
// filtered edges).
func (g *Graph) Exp(v int) [8]int { return g.exp[v] }

// ExpReversed returns node v's reverse expander adjacency: the set of nodes
// w such that v appears in Exp(w).
func (g *Graph) ExpReversed(v int) [8]int { return g.rev[v] }
