// Package transcript implements a trimmed transcript-based key-derivation
// protocol: absorb labeled frames (Mix), then finalize pseudorandom output
// bound to the full transcript (Derive). It backs the default encode.Hasher
// variant.
//
// This is a reduction of a general-purpose protocol framework down to the
// two operations a per-node keyed hash needs; authenticated encryption,
// forking, and ratcheting are out of scope here.
package transcript

import (
	"github.com/nicola/r2/hazmat/turboshake"
)

// Protocol is a transcript instance. Operations append frames to an
// internal transcript; Derive evaluates TurboSHAKE128 over the transcript
// and resets it with a chain value, so repeated Derive calls on the same
// instance are each bound to everything absorbed so far.
type Protocol struct {
	h         turboshake.Hasher
	initLabel string
}

// New creates a protocol instance domain-separated by label.
func New(label string) *Protocol {
	var p Protocol
	p.h = turboshake.New(dsChain)
	p.initLabel = label
	p.writeOpLabel(opInit, label)
	return &p
}

// Mix absorbs labeled data into the transcript.
func (p *Protocol) Mix(label string, data []byte) {
	p.writeOpLabel(opMix, label)
	p.writeLengthEncode(data)
}

// Derive produces outputLen bytes of pseudorandom output that is a
// deterministic function of the full transcript, appending to dst.
// outputLen must be greater than zero.
func (p *Protocol) Derive(label string, dst []byte, outputLen int) []byte {
	if outputLen <= 0 {
		panic("transcript: Derive output_len must be greater than zero")
	}
	ret, out := sliceForAppend(dst, outputLen)

	p.writeOpLabel(opDerive, label)
	p.writeLeftEncode(uint64(outputLen))

	cv := p.finalize(dsDerive, out)
	p.resetChain(opDerive, cv[:])

	return ret
}

// Clone returns an independent copy of the protocol state.
func (p *Protocol) Clone() *Protocol {
	return &Protocol{h: p.h, initLabel: p.initLabel}
}

// finalize evaluates TurboSHAKE128 in parallel over p.h and a clone: p.h
// produces the next chain value, the clone produces dst.
func (p *Protocol) finalize(outputDS byte, dst []byte) [chainValueSize]byte {
	var cv [chainValueSize]byte

	oh := p.h
	turboshake.Chain(&p.h, &oh, outputDS)
	_, _ = p.h.Read(cv[:])
	if dst != nil {
		_, _ = oh.Read(dst)
	}

	return cv
}

// writeOpLabel writes op || length_encode(label), the preamble shared by
// every operation.
func (p *Protocol) writeOpLabel(op byte, label string) {
	n := len(label)
	if n < 256 {
		var buf [259]byte
		buf[0] = op
		buf[1] = 1
		buf[2] = byte(n)
		copy(buf[3:], label)
		_, _ = p.h.Write(buf[:3+n])
	} else {
		_, _ = p.h.Write([]byte{op})
		p.writeLengthEncode([]byte(label))
	}
}

// resetChain resets the transcript with a CHAIN frame binding the next
// operation to the previous one's output.
func (p *Protocol) resetChain(originOp byte, chainValue []byte) {
	p.h.Reset(dsChain)

	const prefixLen = 6
	var buf [prefixLen + chainValueSize]byte
	buf[0] = opChain
	buf[1] = originOp
	buf[2] = 1
	buf[3] = 1 // count = 1 (no tag)
	buf[4] = 1
	buf[5] = chainValueSize
	copy(buf[prefixLen:], chainValue)

	_, _ = p.h.Write(buf[:])
}

// writeLeftEncode writes left_encode(x) as defined in NIST SP 800-185.
func (p *Protocol) writeLeftEncode(x uint64) {
	var buf [9]byte

	if x == 0 {
		buf[0] = 1
		_, _ = p.h.Write(buf[:2])
		return
	}

	i := 8
	v := x
	for v > 0 {
		buf[i] = byte(v)
		v >>= 8
		i--
	}
	buf[i] = byte(8 - i)
	_, _ = p.h.Write(buf[i:9])
}

// writeLengthEncode writes length_encode(x) = left_encode(len(x)) || x.
func (p *Protocol) writeLengthEncode(data []byte) {
	n := len(data)
	if n > 0 && n < 128 {
		var buf [130]byte
		buf[0] = 1
		buf[1] = byte(n)
		copy(buf[2:], data)
		_, _ = p.h.Write(buf[:2+n])
		return
	}
	p.writeLeftEncode(uint64(n))
	if n > 0 {
		_, _ = p.h.Write(data)
	}
}

func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}

const (
	chainValueSize = 64

	dsChain  = 0x20
	dsDerive = 0x21

	opInit   = 0x10
	opMix    = 0x11
	opDerive = 0x14
	opChain  = 0x18
)
