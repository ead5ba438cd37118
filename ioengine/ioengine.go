// Package ioengine pipelines reads of parent nodes against the encoder's
// compute and write encoded nodes back to the layered-data file. A single
// worker goroutine owns the file descriptor and a bounded LRU of recently
// touched nodes; the caller communicates with it over two bounded
// channels, so seeks are fully serialised and reads/writes never race.
//
// The backing file is the single flat binary spec.md §6 describes: layer -1
// (the original plaintext) occupies the first nodes·NodeSize bytes, and
// layer l occupies the block at index l+1 after that.
package ioengine

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// NodeSize is the fixed width, in bytes, of one node slot.
const NodeSize = 32

// defaultCacheSize is MAX_SIZE from spec.md §4.4/§5: roughly 2^20 node
// slots, bounding resident memory at about 32 MiB.
const defaultCacheSize = 1 << 20

// responseBatch is the minimum response channel capacity: one full
// prefetch batch (14 slots — the node itself plus its 13 parents), so the
// worker never blocks mid-batch (spec.md §4.4).
const responseBatch = 14

type nodeKey struct {
	node  int
	layer int
}

type opKind int

const (
	opRead opKind = iota
	opWrite
	opSync
)

type request struct {
	kind  opKind
	node  int
	layer int
	data  [NodeSize]byte
	errCh chan error
}

// Response is one node's worth of bytes delivered by the worker, in the
// exact order the caller asked for it. A fatal I/O error terminates the
// worker without a matching Response; callers must race Responses()
// against Done() and consult Err() once Done() fires (see Flush).
type Response struct {
	Node  int
	Layer int
	Data  [NodeSize]byte
}

// Stats are the cumulative cache/read counters the worker has observed so
// far, mirroring lib.rs's Stats{cache_hits, cache_misses, reads,
// cache_reads} (seeks is not tracked: the reference never advances it
// either, since it seeks implicitly via ReadAt/pread rather than a
// separate positioned seek). Stats is safe to call concurrently with an
// active Engine; every field is read atomically.
type Stats struct {
	CacheHits     int64
	CacheMisses   int64
	ReadTime      time.Duration
	CacheReadTime time.Duration
}

// Engine is the async data I/O pipeline. The zero value is not usable; call
// Open.
type Engine struct {
	reqCh chan request
	resCh chan Response
	done  chan struct{}
	err   error // set by run before closing done; safe to read after Done() fires
	nodes int

	logger *zap.Logger

	hits           atomic.Int64
	misses         atomic.Int64
	readNanos      atomic.Int64
	cacheReadNanos atomic.Int64
}

// Open starts the I/O worker goroutine over the layered-data file at path,
// which must already exist and be sized to hold every layer: spec.md §6's
// single flat binary of (LAYERS+1)·nodes·NodeSize bytes, with layer -1 (the
// original plaintext) at the first nodes·NodeSize block and layer l at
// block l+1. nodes is the node count per layer, needed to compute that
// per-layer stride. cacheSize overrides the default LRU capacity (MAX_SIZE)
// when positive. A nil logger is replaced with a no-op one; every cache hit
// or miss is logged at debug level (spec.md §8 scenario 3).
func Open(path string, nodes, cacheSize int, logger *zap.Logger) (*Engine, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[nodeKey, [NodeSize]byte](cacheSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ioengine: allocate cache: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		reqCh:  make(chan request, 512),
		resCh:  make(chan Response, responseBatch),
		done:   make(chan struct{}),
		nodes:  nodes,
		logger: logger,
	}

	go e.run(f, path, cache)

	return e, nil
}

// offset returns the byte offset of node within layer, per the (layer+1)
// stride described in Open's doc comment.
func (e *Engine) offset(node, layer int) int64 {
	return (int64(layer)+1)*int64(e.nodes)*NodeSize + int64(node)*NodeSize
}

func (e *Engine) run(f *os.File, path string, cache *lru.Cache[nodeKey, [NodeSize]byte]) {
	defer close(e.done)
	defer f.Close()

	for req := range e.reqCh {
		switch req.kind {
		case opRead:
			if !e.read(f, path, cache, req.node, req.layer) {
				return
			}
		case opWrite:
			cache.Add(nodeKey{req.node, req.layer}, req.data)
			off := e.offset(req.node, req.layer)
			if _, err := f.WriteAt(req.data[:], off); err != nil {
				e.err = &IOError{Op: "write", Path: path, Err: err}
				return
			}
		case opSync:
			err := f.Sync()
			if err != nil {
				e.err = &IOError{Op: "sync", Path: path, Err: err}
				req.errCh <- e.err
				return
			}
			req.errCh <- nil
		}
	}
}

// read returns true on success, false if a fatal I/O error was reported
// and the worker must now stop.
func (e *Engine) read(f *os.File, path string, cache *lru.Cache[nodeKey, [NodeSize]byte], node, layer int) bool {
	start := time.Now()

	key := nodeKey{node, layer}
	if data, ok := cache.Get(key); ok {
		e.hits.Add(1)
		e.cacheReadNanos.Add(int64(time.Since(start)))
		e.logger.Debug("cache hit", zap.Int("node", node), zap.Int("layer", layer))
		e.resCh <- Response{Node: node, Layer: layer, Data: data}
		return true
	}
	e.misses.Add(1)
	e.logger.Debug("cache miss", zap.Int("node", node), zap.Int("layer", layer))

	var buf [NodeSize]byte
	off := e.offset(node, layer)
	if _, err := f.ReadAt(buf[:], off); err != nil && err != io.EOF {
		e.err = &IOError{Op: "read", Path: path, Err: err}
		return false
	}

	e.readNanos.Add(int64(time.Since(start)))

	cache.Add(key, buf)
	e.resCh <- Response{Node: node, Layer: layer, Data: buf}
	return true
}

// Prefetch asynchronously requests the 14 node slots (v itself, then its
// 13 parents in canonical order) that C6 will need to encode node v at the
// given file-layer offset. The worker replies on Responses() in exactly
// this order. Once the worker has exited (Done closed), Prefetch is a
// no-op: check Err instead of relying on further Responses.
func (e *Engine) Prefetch(nodes [14]int, layer int) {
	for _, n := range nodes {
		select {
		case e.reqCh <- request{kind: opRead, node: n, layer: layer}:
		case <-e.done:
			return
		}
	}
}

// ReadNode synchronously fetches a single node, bypassing the 14-wide batch
// contract Prefetch/Responses expects. The replica driver uses this between
// layers to copy each node's bytes forward from the previous layer one at a
// time; nothing else may call Prefetch concurrently with it, since both
// share the same response channel and ordering would otherwise be
// unspecified.
func (e *Engine) ReadNode(v, layer int) (Response, error) {
	select {
	case e.reqCh <- request{kind: opRead, node: v, layer: layer}:
	case <-e.done:
		return Response{}, e.err
	}
	select {
	case r := <-e.resCh:
		return r, nil
	case <-e.done:
		return Response{}, e.err
	}
}

// Responses returns the channel the caller should drain, in order, once
// per entry requested by Prefetch. Drain it with a select against Done, as
// a fatal error ends the stream with no final Response.
func (e *Engine) Responses() <-chan Response { return e.resCh }

// Done is closed when the worker goroutine exits, whether cleanly (after
// Close) or because of a fatal I/O error. Check Err after Done fires.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Err returns the fatal error that stopped the worker, or nil if it has
// not stopped or stopped cleanly. Only valid to call after Done() fires.
func (e *Engine) Err() error { return e.err }

// Stats returns a snapshot of the cumulative cache/read counters. Safe to
// call at any time, including concurrently with an active Engine.
func (e *Engine) Stats() Stats {
	return Stats{
		CacheHits:     e.hits.Load(),
		CacheMisses:   e.misses.Load(),
		ReadTime:      time.Duration(e.readNanos.Load()),
		CacheReadTime: time.Duration(e.cacheReadNanos.Load()),
	}
}

// WriteNode enqueues a write-through of data to node v's slot at layer,
// also updating the LRU so a subsequent read of the same (v, layer) pair
// observes it without a round trip to disk. Once the worker has exited, it
// is a no-op; check Err.
func (e *Engine) WriteNode(v, layer int, data [NodeSize]byte) {
	select {
	case e.reqCh <- request{kind: opWrite, node: v, layer: layer, data: data}:
	case <-e.done:
	}
}

// Flush drains all pending writes and durably syncs the file; it blocks
// until the worker acknowledges. Any I/O error encountered by the worker,
// now or earlier, is returned here and is fatal for the replication
// attempt — the worker exits and must not be reused.
func (e *Engine) Flush() error {
	select {
	case <-e.done:
		return e.err
	default:
	}

	errCh := make(chan error, 1)
	select {
	case e.reqCh <- request{kind: opSync, errCh: errCh}:
	case <-e.done:
		return e.err
	}

	select {
	case err := <-errCh:
		return err
	case <-e.done:
		return e.err
	}
}

// Close stops the worker goroutine without issuing a final sync. Callers
// that need durability must call Flush first.
func (e *Engine) Close() {
	close(e.reqCh)
	<-e.done
}

// IOError wraps an OS-level failure encountered by the I/O worker.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ioengine: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
