package encode

import (
	"github.com/nicola/r2/graph"
	"github.com/nicola/r2/ioengine"
)

// Encoder is C6's per-node encode loop: derive a key by absorbing a node's
// parents into a Hasher, add it to the node's current bytes modulo the
// BLS12-381 scalar field, and write the result back through an
// *ioengine.Engine.
type Encoder struct {
	hasher    Hasher
	replicaID [32]byte
}

// New returns an Encoder bound to hasher and replicaID, both fixed for the
// whole replication run.
func New(hasher Hasher, replicaID [32]byte) *Encoder {
	return &Encoder{hasher: hasher, replicaID: replicaID}
}

// EncodeNode runs spec.md §4.5 steps 2–9 for one node. view is already the
// forward or reverse parent view for the layer's parity (graph.Graph.View);
// layer selects which slot in the layered data file is read and rewritten.
//
// The 14-wide prefetch batch is node v itself, then its 13 parents in
// view's canonical order; EncodeNode drains exactly that many responses in
// that order, per ioengine's FIFO contract.
func (e *Encoder) EncodeNode(io *ioengine.Engine, view graph.ParentView, layer int) error {
	v := view.Node

	var batch [14]int
	batch[0] = v
	copy(batch[1:], view.Parents[:])
	io.Prefetch(batch, layer)

	nodeResp, err := e.next(io)
	if err != nil {
		return err
	}

	state := e.hasher.New(e.replicaID)

	// spec.md §4.5 step 4: if the first parent slot equals v itself — true
	// for node 0 in the forward view (its bas/exp rows are all zero by
	// construction) and for node NODES-1 in the reverse view (its mirrored
	// base row is node 0's) — nothing beyond the replica-id is absorbed.
	// All 13 parent reads are still drained here to keep the response
	// stream in lock-step with what Prefetch queued; for every other node,
	// a slot holding the zero padding described in spec.md §9 is absorbed,
	// not skipped.
	noParents := view.Parents[0] == v
	for range view.Parents {
		parentResp, err := e.next(io)
		if err != nil {
			return err
		}
		if !noParents {
			state.Absorb(parentResp.Data[:])
		}
	}

	key := state.Finalize()
	// The raw hash output is read as a field element with its top two bits
	// cleared, so it always decodes to a value below p.
	key[NodeSize-1] &= topBitsMask

	r, err := decodeField(nodeResp.Data)
	if err != nil {
		return err
	}
	keyElem, err := decodeField(key)
	if err != nil {
		return err
	}

	encoded := encodeField(addMod(r, keyElem))
	io.WriteNode(v, layer, encoded)
	return nil
}

// next reads the next in-order response from io, or returns its fatal
// error once the worker has exited without one.
func (e *Encoder) next(io *ioengine.Engine) (ioengine.Response, error) {
	select {
	case r := <-io.Responses():
		return r, nil
	case <-io.Done():
		return ioengine.Response{}, io.Err()
	}
}
