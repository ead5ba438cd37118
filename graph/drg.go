package graph

import (
	"math/bits"

	"golang.org/x/crypto/chacha20"
)

// bucketSample returns the BaseParents DRG parent indices for node v,
// sorted ascending, each strictly less than v. Nodes 0 and 1 have all
// parents set to 0.
//
// The sampler seeds a ChaCha20 keystream from seed || v and, for each of
// the m = BaseParents meta-edge slots, derives a geometrically-distributed
// back-distance the way a depth-robust graph sampler does: pick a random
// level j below log2(v*m), clamp a window to 2^(j+1), and draw a uniform
// back-distance inside that window. This produces long-range edges with a
// bias toward recent nodes, the property that makes the resulting graph
// depth-robust.
func bucketSample(v int, m int, seed [7]uint32) [5]int {
	var out [5]int
	if v == 0 || v == 1 {
		return out
	}

	rng := newDRGRand(seed, uint32(v))

	for k := 0; k < m; k++ {
		logi := bits.Len(uint(v*m)) - 1
		if logi <= 0 {
			logi = 1
		}
		j := int(rng.Uint64() % uint64(logi))
		jj := min(v*m+k, 1<<(j+1))
		lo := max(jj>>1, 2)
		span := jj - lo + 1
		backDist := lo + int(rng.Uint64()%uint64(span))

		o := (v*m + k - backDist) / m
		if o == v {
			o = v - 1
		}
		out[k] = o
	}

	slicesSort5(&out, m)
	return out
}

// drgRand is a ChaCha20-keystream-backed uniform random source, seeded
// deterministically from the DRG seed and the node index.
type drgRand struct {
	c   *chacha20.Cipher
	buf [8]byte
}

func newDRGRand(seed [7]uint32, node uint32) *drgRand {
	var key [32]byte
	for i, w := range seed {
		putUint32(key[i*4:], w)
	}
	putUint32(key[28:], node)

	var nonce [12]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// key and nonce are fixed-size and always valid; this cannot happen.
		panic(err)
	}
	return &drgRand{c: c}
}

// Uint64 returns the next 8 bytes of keystream as a little-endian uint64.
func (r *drgRand) Uint64() uint64 {
	var zero [8]byte
	r.c.XORKeyStream(r.buf[:], zero[:])
	return uint64(r.buf[0]) | uint64(r.buf[1])<<8 | uint64(r.buf[2])<<16 | uint64(r.buf[3])<<24 |
		uint64(r.buf[4])<<32 | uint64(r.buf[5])<<40 | uint64(r.buf[6])<<48 | uint64(r.buf[7])<<56
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// slicesSort5 insertion-sorts the first n elements of a fixed 5-array;
// BaseParents is always 5 in this module, so a tiny insertion sort avoids
// pulling in sort.Ints for a handful of elements.
func slicesSort5(a *[5]int, n int) {
	for i := 1; i < n; i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && a[j] > v {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}
