package graph

import (
	"encoding/binary"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/nicola/r2/hazmat/kt128"
)

const (
	cacheMagic   = uint32(0x5a494752) // "ZIGR"
	cacheVersion = uint32(1)
	headerSize   = 16
	checksumSize = 32
)

// IO/integrity wrapping is left to the caller (r2.IOError /
// r2.IntegrityError) so this package stays free of a dependency on the root
// package; LoadOrBuild returns plain errors that the caller is expected to
// classify.

// LoadOrBuild loads a graph cache file at path, or builds and saves one if
// the file does not exist. A header or checksum mismatch on an existing
// file is reported as an *integrityErr; any other open or read failure as
// an *ioErr — both are plain errors wrapping the underlying cause, left for
// the caller to reclassify into r2.IntegrityError / r2.IOError. Neither is
// recovered here by rebuilding the graph.
//
// A save failure on a freshly built graph is not one of those: per
// spec.md's cache-save policy, it is logged through logger (a nil logger
// is treated as a no-op) and swallowed — the caller still gets back the
// in-memory graph it just built, built=true, and a nil error.
func LoadOrBuild(path string, nodes, baseParents, expParents int, seed [7]uint32, logger *zap.Logger) (g *Graph, built bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			g, err = Build(nodes, baseParents, expParents, seed)
			if err != nil {
				return nil, false, err
			}
			if saveErr := Save(path, g); saveErr != nil {
				logger.Warn("graph cache save failed, continuing with in-memory graph",
					zap.String("path", path), zap.Error(saveErr))
			}
			return g, true, nil
		}
		return nil, false, &ioErr{op: "open", path: path, err: err}
	}
	defer f.Close()

	g, err = load(f, nodes, baseParents, expParents, seed)
	if err != nil {
		return nil, false, err
	}
	return g, false, nil
}

// Save writes g to path in the fixed binary cache format: a 16-byte header
// followed by bas, exp, exp_reversed in row-major little-endian uint64s,
// followed by a 32-byte KT128 checksum of everything preceding it.
func Save(path string, g *Graph) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &ioErr{op: "create", path: path, err: err}
	}

	h := kt128.New()
	w := io.MultiWriter(f, h)

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], cacheMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], cacheVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(g.Nodes))
	binary.LittleEndian.PutUint16(hdr[12:14], uint16(g.BaseParents))
	binary.LittleEndian.PutUint16(hdr[14:16], uint16(g.ExpParents))
	if _, err := w.Write(hdr[:]); err != nil {
		f.Close()
		return &ioErr{op: "write", path: path, err: err}
	}

	buf := make([]byte, 8)
	writeRow := func(vals []int) error {
		for _, v := range vals {
			binary.LittleEndian.PutUint64(buf, uint64(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}

	for v := 0; v < g.Nodes; v++ {
		bas := g.Bas(v)
		if err := writeRow(bas[:]); err != nil {
			f.Close()
			return &ioErr{op: "write", path: path, err: err}
		}
	}
	for v := 0; v < g.Nodes; v++ {
		exp := g.Exp(v)
		if err := writeRow(exp[:]); err != nil {
			f.Close()
			return &ioErr{op: "write", path: path, err: err}
		}
	}
	for v := 0; v < g.Nodes; v++ {
		rev := g.ExpReversed(v)
		if err := writeRow(rev[:]); err != nil {
			f.Close()
			return &ioErr{op: "write", path: path, err: err}
		}
	}

	sum := h.Sum(nil)
	if _, err := f.Write(sum); err != nil {
		f.Close()
		return &ioErr{op: "write", path: path, err: err}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return &ioErr{op: "sync", path: path, err: err}
	}
	if err := f.Close(); err != nil {
		return &ioErr{op: "close", path: path, err: err}
	}
	return os.Rename(tmp, path)
}

func load(f *os.File, nodes, baseParents, expParents int, seed [7]uint32) (*Graph, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &ioErr{op: "read", path: f.Name(), err: err}
	}
	if len(data) < headerSize+checksumSize {
		return nil, &integrityErr{path: f.Name(), reason: "truncated cache file"}
	}

	body := data[:len(data)-checksumSize]
	wantSum := data[len(data)-checksumSize:]
	h := kt128.New()
	_, _ = h.Write(body)
	gotSum := h.Sum(nil)
	if string(gotSum) != string(wantSum) {
		return nil, &integrityErr{path: f.Name(), reason: "checksum mismatch"}
	}

	magic := binary.LittleEndian.Uint32(body[0:4])
	version := binary.LittleEndian.Uint32(body[4:8])
	cachedNodes := binary.LittleEndian.Uint32(body[8:12])
	cachedBase := binary.LittleEndian.Uint16(body[12:14])
	cachedExp := binary.LittleEndian.Uint16(body[14:16])

	if magic != cacheMagic {
		return nil, &integrityErr{path: f.Name(), reason: "bad magic"}
	}
	if version != cacheVersion {
		return nil, &integrityErr{path: f.Name(), reason: "unsupported version"}
	}
	if int(cachedNodes) != nodes || int(cachedBase) != baseParents || int(cachedExp) != expParents {
		return nil, &integrityErr{path: f.Name(), reason: "header does not match requested configuration"}
	}

	g := &Graph{
		Nodes:       nodes,
		BaseParents: baseParents,
		ExpParents:  expParents,
		Seed:        seed,
		bas:         make([][5]int, nodes),
		exp:         make([][8]int, nodes),
		rev:         make([][8]int, nodes),
	}

	off := headerSize
	readRow := func(n int) ([]int, error) {
		out := make([]int, n)
		for i := 0; i < n; i++ {
			if off+8 > len(body) {
				return nil, &integrityErr{path: f.Name(), reason: "truncated row data"}
			}
			out[i] = int(binary.LittleEndian.Uint64(body[off : off+8]))
			off += 8
		}
		return out, nil
	}

	for v := 0; v < nodes; v++ {
		row, err := readRow(baseParents)
		if err != nil {
			return nil, err
		}
		copy(g.bas[v][:], row)
	}
	for v := 0; v < nodes; v++ {
		row, err := readRow(expParents)
		if err != nil {
			return nil, err
		}
		copy(g.exp[v][:], row)
	}
	for v := 0; v < nodes; v++ {
		row, err := readRow(expParents)
		if err != nil {
			return nil, err
		}
		copy(g.rev[v][:], row)
	}

	return g, nil
}

type ioErr struct {
	op   string
	path string
	err  error
}

func (e *ioErr) Error() string { return "graph: " + e.op + " " + e.path + ": " + e.err.Error() }
func (e *ioErr) Unwrap() error { return e.err }

// IsIOError reports whether err was produced by an OS-level failure, as
// opposed to a header/checksum IntegrityError.
func IsIOError(err error) bool {
	_, ok := err.(*ioErr)
	return ok
}

type integrityErr struct {
	path   string
	reason string
}

func (e *integrityErr) Error() string { return "graph: " + e.path + ": " + e.reason }

// IsIntegrityError reports whether err was produced by a header or
// checksum mismatch on an existing cache file.
func IsIntegrityError(err error) bool {
	_, ok := err.(*integrityErr)
	return ok
}

// Path returns the cache error's target file path, for callers that want to
// log it regardless of which kind it is.
func Path(err error) string {
	switch e := err.(type) {
	case *ioErr:
		return e.path
	case *integrityErr:
		return e.path
	default:
		return ""
	}
}
