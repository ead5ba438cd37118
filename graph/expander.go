package graph

import "github.com/nicola/r2/hazmat/feistel"

// expanderParents returns the forward ExpParents expander-graph parents of
// node v: for each slot i, the Feistel image of v*expParents+i divided by
// expParents, kept only when it is strictly less than v. Filtered-out slots
// are left at their zero value — the encoder absorbs that zero rather than
// skipping it, per the construction's bit-compatibility requirement. real[i]
// reports whether slot i holds a genuine edge (as opposed to zero padding),
// which the reverse-adjacency pass needs to avoid treating every padded
// slot as an edge into node 0.
func expanderParents(v, expParents, nodes int, pre feistel.Precomputed) (out [8]int, real [8]bool) {
	domain := feistel.Index(nodes * expParents)

	for i := 0; i < expParents; i++ {
		x := feistel.Index(v*expParents + i)
		y := feistel.Permute(domain, x, pre)
		p := int(y) / expParents
		if p < v {
			out[i] = p
			real[i] = true
		}
	}
	return out, real
}
