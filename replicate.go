package r2

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"

	"github.com/nicola/r2/encode"
	"github.com/nicola/r2/graph"
	"github.com/nicola/r2/ioengine"
)

// Replicate runs C7: Parameters.Layers passes of the C6 encode loop over the
// layered-data file at dataPath, producing a full replica bound to
// replicaID. dataPath must already exist, be sized to
// Parameters.LayeredDataBytes(), and have the original plaintext in its
// layer -1 block (the first SectorBytes() bytes); every later block is
// overwritten in place. cacheDir is where the graph cache is loaded from or
// built into, per Parameters.CacheFileName(). A nil logger is replaced with
// a no-op one.
//
// Any layer that fails aborts the whole replica; whatever is already on
// disk is left as-is (spec.md §4.6 — there is no rollback).
func Replicate(ctx context.Context, params Parameters, replicaID [32]byte, dataPath, cacheDir string, hasher encode.Hasher, logger *zap.Logger) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cachePath := filepath.Join(cacheDir, params.CacheFileName())
	g, built, err := graph.LoadOrBuild(cachePath, params.Nodes, params.BaseParents, params.ExpParents, params.Seed, logger)
	if err != nil {
		return wrapGraphErr(err)
	}
	logger.Info("graph ready", zap.String("cache", cachePath), zap.Bool("built", built), zap.Int("nodes", params.Nodes))

	io, err := ioengine.Open(dataPath, params.Nodes, 0, logger)
	if err != nil {
		return &IOError{Op: "open", Path: dataPath, Err: err}
	}
	defer io.Close()

	enc := encode.New(hasher, replicaID)

	for layer := 0; layer < params.Layers; layer++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := copyPreviousLayer(io, params.Nodes, layer); err != nil {
			return err
		}

		stopProfile := maybeProfileLayer(layer)
		start := time.Now()

		for v := 0; v < params.Nodes; v++ {
			view := g.View(v, layer)
			if err := enc.EncodeNode(io, view, layer); err != nil {
				stopProfile()
				return wrapEncodeErr(err)
			}
		}

		if err := io.Flush(); err != nil {
			stopProfile()
			return &IOError{Op: "flush", Path: dataPath, Err: err}
		}
		stopProfile()

		logger.Info("layer replicated",
			zap.Int("layer", layer),
			zap.Bool("forward", layer%2 == 0),
			zap.Int("bytes", params.Nodes*NodeSize),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	stats := io.Stats()
	logger.Info("replication stats",
		zap.Int64("cache_hits", stats.CacheHits),
		zap.Int64("cache_misses", stats.CacheMisses),
		zap.Duration("read_time", stats.ReadTime),
		zap.Duration("cache_read_time", stats.CacheReadTime),
	)

	return nil
}

// copyPreviousLayer seeds layer's block with layer-1's bytes (layer -1 is
// the original plaintext) before the encode pass runs, so the encoder can
// treat "node v's current value" and "node v's parent value" uniformly as
// reads of the current layer: parents less than v have already been
// overwritten with their encoded value by the time v is reached, and v's
// own not-yet-processed slot still holds the copy made here. This
// reproduces the reference driver's read-parents-at-layer,
// read-self-at-layer-minus-one split (see DESIGN.md, Open Question
// decision 1) without the encoder needing to know about two layers at once.
func copyPreviousLayer(io *ioengine.Engine, nodes, layer int) error {
	for v := 0; v < nodes; v++ {
		r, err := io.ReadNode(v, layer-1)
		if err != nil {
			return &IOError{Op: "read", Err: err}
		}
		io.WriteNode(v, layer, r.Data)
	}
	if err := io.Flush(); err != nil {
		return &IOError{Op: "flush", Err: err}
	}
	return nil
}

// maybeProfileLayer starts a per-layer CPU profile when REPLICATE_PROFILE=1
// is set, writing to layer-<n>.profile in the working directory, mirroring
// the per-stage start_profile/stop_profile gate in replicate.rs. It returns
// a stop function that is always safe to call.
func maybeProfileLayer(layer int) func() {
	if os.Getenv("REPLICATE_PROFILE") != "1" {
		return func() {}
	}

	f, err := os.Create(fmt.Sprintf("layer-%d.profile", layer))
	if err != nil {
		return func() {}
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return func() {}
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}
}

// wrapGraphErr reclassifies an error from graph.LoadOrBuild into this
// package's error kinds (spec.md §7): a header/checksum mismatch becomes an
// IntegrityError, anything else an IOError.
func wrapGraphErr(err error) error {
	if graph.IsIntegrityError(err) {
		return &IntegrityError{Path: graph.Path(err), Reason: err.Error()}
	}
	return &IOError{Op: "graph", Path: graph.Path(err), Err: err}
}

// wrapEncodeErr reclassifies an error surfaced by the encoder: a field
// decoding failure becomes a DomainError, an I/O worker failure an IOError,
// anything else is passed through unwrapped.
func wrapEncodeErr(err error) error {
	switch e := err.(type) {
	case *encode.DomainError:
		return &DomainError{Reason: e.Reason}
	case *ioengine.IOError:
		return &IOError{Op: e.Op, Path: e.Path, Err: e.Err}
	default:
		return err
	}
}
