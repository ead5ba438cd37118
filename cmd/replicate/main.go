// Command replicate runs one C7 replication pass end to end: build or load
// the SDR graph, open the layered-data file, and encode every layer in
// place. It is a thin driver — flag parsing and exit-code mapping only;
// the replication itself lives in package r2.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nicola/r2"
	"github.com/nicola/r2/encode"
)

var (
	sectorSize   int64
	layers       int
	replicaIDHex string
	seedHex      string
	verbose      bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replicate <output-path>",
		Short: "Replicate a layered-data file in place",
		Long: `replicate builds (or loads a cached) SDR graph and runs LAYERS
sequential encoding passes over the layered-data file at <output-path>,
binding the result to a replica ID.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplicate,
	}

	cmd.Flags().Int64Var(&sectorSize, "sector-size", 1<<20, "bytes per layer (NODES * 32); rounded down to a multiple of 32")
	cmd.Flags().IntVar(&layers, "layers", 10, "number of stacked encoding passes")
	cmd.Flags().StringVar(&replicaIDHex, "replica-id-hex", "", "64 hex characters binding the replica (required)")
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "56 hex characters (7 uint32, big-endian) seeding graph construction; defaults to 0..6")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	// REPLICATE_PROFILE is read directly by replicate.go's
	// maybeProfileLayer, not through viper: it gates a behavior internal
	// to the core, not a CLI-level setting this command resolves itself.
	viper.SetEnvPrefix("replicate")
	viper.BindEnv("cache_dir", "REPLICATE_CACHE_DIR")

	return cmd
}

func runReplicate(cmd *cobra.Command, args []string) error {
	dataPath := args[0]

	replicaID, err := parseReplicaID(replicaIDHex)
	if err != nil {
		return &r2.ConfigError{Field: "replica-id-hex", Reason: err.Error()}
	}

	seed, err := parseSeed(seedHex)
	if err != nil {
		return &r2.ConfigError{Field: "seed-hex", Reason: err.Error()}
	}

	nodes := int(sectorSize / r2.NodeSize)
	params, err := r2.NewParameters(nodes, layers, seed)
	if err != nil {
		return err
	}

	cacheDir := viper.GetString("cache_dir")
	if cacheDir == "" {
		cacheDir = "."
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return &r2.IOError{Op: "logger init", Err: err}
	}
	defer logger.Sync()

	return r2.Replicate(cmd.Context(), params, replicaID, dataPath, cacheDir, encode.TranscriptHasher{}, logger)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

func parseReplicaID(s string) ([32]byte, error) {
	var id [32]byte
	if s == "" {
		return id, fmt.Errorf("required")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != 32 {
		return id, fmt.Errorf("must decode to 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func parseSeed(s string) ([7]uint32, error) {
	if s == "" {
		return [7]uint32{0, 1, 2, 3, 4, 5, 6}, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [7]uint32{}, err
	}
	if len(b) != 28 {
		return [7]uint32{}, fmt.Errorf("must decode to 28 bytes (7 uint32), got %d", len(b))
	}
	var seed [7]uint32
	for i := range seed {
		seed[i] = uint32(b[i*4])<<24 | uint32(b[i*4+1])<<16 | uint32(b[i*4+2])<<8 | uint32(b[i*4+3])
	}
	return seed, nil
}

// exitCodeFor maps the core's error kinds to spec.md §6's exit-code
// contract. DomainError has no dedicated code in that contract; it folds
// into the IOError code since both indicate the replica file itself is
// unusable, as opposed to a config mistake or a graph-cache problem.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *r2.ConfigError:
		return 1
	case *r2.IntegrityError:
		return 3
	case *r2.IOError, *r2.DomainError:
		return 2
	default:
		return 2
	}
}
