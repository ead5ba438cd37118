// Package r2 implements the core of a Proof-of-Replication replicator based
// on stacked depth-robust graphs (SDR / "ZigZag"): deterministic graph
// construction, a sequential layered encoder, and the plumbing that overlaps
// disk I/O with encoding work.
package r2

import "fmt"

// NodeSize is the fixed width, in bytes, of a single node's canonical field
// encoding.
const NodeSize = 32

// Parameters is the immutable configuration for one replication run. Callers
// construct one with NewParameters or DefaultParameters and pass it by value
// or as a read-only pointer through every component; nothing in this module
// mutates a Parameters after construction.
type Parameters struct {
	// Nodes is the number of nodes per layer. In practice a power of two.
	Nodes int
	// Layers is the number of stacked encoding passes, at least 2.
	Layers int
	// BaseParents is the DRG in-degree (fixed at 5 by the hash plan).
	BaseParents int
	// ExpParents is the expander out-degree (fixed at 8 by the hash plan).
	ExpParents int
	// Seed is seven 32-bit words seeding DRG edge sampling.
	Seed [7]uint32
}

// ParentSize is BaseParents + ExpParents for the fixed configuration this
// module supports.
const ParentSize = 13

// DefaultParameters returns the reference configuration: Nodes=2^20,
// Layers=10, BaseParents=5, ExpParents=8, Seed={0,...,6}.
func DefaultParameters() Parameters {
	return Parameters{
		Nodes:       1 << 20,
		Layers:      10,
		BaseParents: 5,
		ExpParents:  8,
		Seed:        [7]uint32{0, 1, 2, 3, 4, 5, 6},
	}
}

// NewParameters validates and returns a Parameters value, or a *ConfigError
// if the combination is impossible.
//
// BaseParents and ExpParents are pinned at 5 and 8 respectively: the
// encoder's hash plan absorbs exactly ParentSize (13) parent slots in a
// fixed canonical order, so any other degree would require a different
// wire format than the one this module implements.
func NewParameters(nodes, layers int, seed [7]uint32) (Parameters, error) {
	p := Parameters{
		Nodes:       nodes,
		Layers:      layers,
		BaseParents: 5,
		ExpParents:  8,
		Seed:        seed,
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// Validate returns a *ConfigError describing the first impossible field, or
// nil if p is internally consistent.
func (p Parameters) Validate() error {
	if p.Nodes < 4 {
		return &ConfigError{Field: "Nodes", Reason: fmt.Sprintf("must be >= 4, got %d", p.Nodes)}
	}
	if p.Layers < 2 {
		return &ConfigError{Field: "Layers", Reason: fmt.Sprintf("must be >= 2, got %d", p.Layers)}
	}
	if p.BaseParents != 5 {
		return &ConfigError{Field: "BaseParents", Reason: fmt.Sprintf("must be 5, got %d", p.BaseParents)}
	}
	if p.ExpParents != 8 {
		return &ConfigError{Field: "ExpParents", Reason: fmt.Sprintf("must be 8, got %d", p.ExpParents)}
	}
	return nil
}

// SectorBytes is the total size in bytes of one layer's worth of node data:
// Nodes * NodeSize.
func (p Parameters) SectorBytes() int64 {
	return int64(p.Nodes) * NodeSize
}

// LayeredDataBytes is the total size of the layered-data file: (Layers+1)
// layers of SectorBytes each (the plaintext layer plus Layers encoded
// layers).
func (p Parameters) LayeredDataBytes() int64 {
	return int64(p.Layers+1) * p.SectorBytes()
}

// CacheFileName returns the graph cache file name for this configuration,
// following the "g_{MB}mb.bin" convention of spec §6, standardized on a
// single binary format (see DESIGN.md, Open Question decision 3).
func (p Parameters) CacheFileName() string {
	mb := p.SectorBytes() / (1 << 20)
	if mb < 1 {
		mb = 1
	}
	return fmt.Sprintf("g_%dmb.bin", mb)
}
