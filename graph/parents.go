package graph

// ParentView yields the canonical 13-parent sequence the encoder absorbs
// for one node, plus the node index itself as the 14th slot the I/O layer
// must prefetch alongside the parents.
type ParentView struct {
	Node    int
	Parents [13]int
}

// Forward returns the forward (even-layer) parent view of node v: the 5
// base parents in ascending order, then the 8 expander parents, padding
// slots included.
func (g *Graph) Forward(v int) ParentView {
	var pv ParentView
	pv.Node = v

	bas := g.Bas(v)
	exp := g.Exp(v)
	copy(pv.Parents[0:5], bas[:])
	copy(pv.Parents[5:13], exp[:])
	return pv
}

// Reverse returns the reverse (odd-layer) parent view of node v. Base
// parents are read from the mirrored node NODES-v-1 and mirrored again
// (NODES - bas[NODES-v-1][k] - 1); expander parents come from the reverse
// adjacency computed at graph-build time. This is the ZigZag traversal:
// the DRG graph is run backwards and expander edges are reversed.
func (g *Graph) Reverse(v int) ParentView {
	var pv ParentView
	pv.Node = v

	mirror := g.Nodes - v - 1
	bas := g.Bas(mirror)
	for k, p := range bas {
		pv.Parents[k] = g.Nodes - p - 1
	}

	exp := g.ExpReversed(v)
	copy(pv.Parents[5:13], exp[:])
	return pv
}

// View returns Forward(v) or Reverse(v) depending on layer parity:
// even layers traverse forward, odd layers traverse reversed.
func (g *Graph) View(v, layer int) ParentView {
	if layer%2 == 0 {
		return g.Forward(v)
	}
	return g.Reverse(v)
}
