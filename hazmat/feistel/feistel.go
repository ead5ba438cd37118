// Package feistel implements a deterministic, memory-free permutation over
// [0, domainSize) using a balanced Feistel network. It is used to derive
// expander-graph edges without materialising the full edge set.
package feistel

// Index is the type of domain elements and permutation outputs.
type Index = uint64

// keys is the fixed round-key schedule; every caller in this module uses
// the same four keys, only the first three of which feed the three rounds
// the network runs.
var keys = [4]Index{1, 2, 3, 4}

// Precomputed holds the derived mask and half-width for a given domain
// size, so that Permute and Invert need not recompute them per call.
type Precomputed struct {
	numElements Index
	leftMask    Index
	rightMask   Index
	halfBits    uint
}

// Precompute derives the half-width and masks for a domain of the given
// size. The Feistel network operates over the smallest power of 4 at least
// as large as numElements; Permute and Invert cycle-walk any output that
// lands outside the true domain back through the network.
func Precompute(numElements Index) Precomputed {
	var halfBits uint
	next := Index(4)
	for next < numElements {
		next *= 4
		halfBits++
	}
	halfBits++
	half := Index(1) << halfBits
	return Precomputed{
		numElements: numElements,
		leftMask:    (half - 1) << halfBits,
		rightMask:   half - 1,
		halfBits:    halfBits,
	}
}

// round is the keyed arithmetic mix applied to the right half each round.
func round(right, key, mask Index) Index {
	v := (right + key) * (right + key + 1)
	v ^= v >> 17
	return v & mask
}

func encode(index Index, p Precomputed) Index {
	left := index >> p.halfBits
	right := index & p.rightMask
	for _, k := range keys[:3] {
		left, right = right, left^round(right, k, p.rightMask)
	}
	return (left << p.halfBits) | right
}

func decode(index Index, p Precomputed) Index {
	left := index >> p.halfBits
	right := index & p.rightMask
	for i := 2; i >= 0; i-- {
		left, right = right^round(left, keys[i], p.rightMask), left
	}
	return (left << p.halfBits) | right
}

// Permute returns the image of x under the permutation, 0 <= result <
// domainSize. It takes no key argument: every call uses the package's
// fixed key schedule.
func Permute(domainSize Index, x Index, p Precomputed) Index {
	u := encode(x, p)
	for u >= domainSize {
		u = encode(u, p)
	}
	return u
}

// Invert is the inverse of Permute: Invert(domainSize, Permute(domainSize,
// x, p), p) == x.
func Invert(domainSize Index, x Index, p Precomputed) Index {
	u := decode(x, p)
	for u >= domainSize {
		u = decode(u, p)
	}
	return u
}
