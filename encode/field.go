package encode

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// NodeSize is the fixed width, in bytes, of one node slot — duplicated from
// the root package's constant of the same value (params.go) rather than
// imported, since the root package's replica driver imports this package and
// a reverse import would cycle.
const NodeSize = 32

// DomainError reports 32 input bytes that do not decode to a valid field
// element. It carries the same shape as the root package's DomainError
// (errors.go) for the same reason NodeSize is duplicated above; Replicate
// wraps it into an *r2.DomainError at the call site.
type DomainError struct{ Reason string }

func (e *DomainError) Error() string { return fmt.Sprintf("encode: domain error: %s", e.Reason) }

// Canonical little-endian field-element encoding, per spec.md §4.5/§6: the
// top two bits of byte 31 are reserved and must be zero. Because the BLS12-381
// scalar field prime begins with the bits 0111..., any 32-byte buffer with
// those two bits clear represents a value strictly less than the prime, so
// decode can validate the encoding without comparing against the prime
// itself — a mismatch is a DomainError (spec.md §7), not a silent mask.
const topBitsMask = 0x3f

// decodeField reads a canonical little-endian field element out of buf. It
// returns a *DomainError if the reserved top two bits of byte 31 are set.
func decodeField(buf [NodeSize]byte) (fr.Element, error) {
	if buf[NodeSize-1]&^topBitsMask != 0 {
		return fr.Element{}, &DomainError{Reason: "top two bits of byte 31 are not cleared"}
	}

	var be [NodeSize]byte
	reverseBytes(be[:], buf[:])

	var e fr.Element
	e.SetBytes(be[:])
	return e, nil
}

// encodeField writes e back out as a canonical little-endian field element.
// add_assign (see addMod) never produces an element whose top two bits are
// set for the values this encoder ever computes, because every operand it
// ever decodes has already passed the decodeField check above; encodeField
// does not re-mask, it trusts the field arithmetic.
func encodeField(e fr.Element) [NodeSize]byte {
	be := e.Bytes()
	var out [NodeSize]byte
	reverseBytes(out[:], be[:])
	return out
}

// DecodeLeaf validates that buf is a properly masked canonical field
// encoding and returns it unchanged. Commitment leaf production (spec.md
// §4.7) parses every leaf through the same decoding the encoder uses
// without needing the field value itself, so this exposes just the
// validation half of decodeField/encodeField to other packages.
func DecodeLeaf(buf [NodeSize]byte) ([NodeSize]byte, error) {
	e, err := decodeField(buf)
	if err != nil {
		return [NodeSize]byte{}, err
	}
	return encodeField(e), nil
}

// addMod computes (a + b) mod p using the field's own reduced arithmetic:
// a single conditional subtraction of p, matching spec.md §4.5 step 8's
// add_assign semantics exactly.
func addMod(a, b fr.Element) fr.Element {
	var sum fr.Element
	sum.Add(&a, &b)
	return sum
}

func reverseBytes(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}
