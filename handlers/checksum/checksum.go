// Package checksum hashes source files.
//
// Operations:
//
//   - signature: hashes with every algorithm in the "algorithms" option
//     (default sha256)
//   - md5, sha1, sha256, sha512, crc32, xxhash: hashes with one algorithm
//
// With the "sidecar" option the digests are also written next to the
// output as "<name>.<algorithm>" files.
package checksum

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gobeaver/fgen"
	"github.com/gobeaver/fgen/storage"
)

// ID is the catalog identifier used by the CLI preset.
const ID = "checksum"

// DefaultAlgorithm is used when a signature call names none.
const DefaultAlgorithm = storage.ChecksumSHA256

// Handler computes file digests.
type Handler struct {
	*fgen.Operations
}

// New creates a checksum handler.
func New() *Handler {
	h := &Handler{Operations: fgen.NewOperations()}
	_ = h.Register("signature", h.signature)
	for _, algo := range []storage.ChecksumAlgorithm{
		storage.ChecksumMD5,
		storage.ChecksumSHA1,
		storage.ChecksumSHA256,
		storage.ChecksumSHA512,
		storage.ChecksumCRC32,
		storage.ChecksumXXHash,
	} {
		_ = h.Register(string(algo), h.single(algo))
	}
	return h
}

// Factory returns a catalog factory for the handler.
func Factory() fgen.HandlerFactory {
	return func() (fgen.Handler, error) {
		return New(), nil
	}
}

func (h *Handler) signature(ctx context.Context, call *fgen.Call) (fgen.Output, error) {
	names := call.Options.Strings("algorithms")
	if len(names) == 0 {
		names = []string{string(DefaultAlgorithm)}
	}
	algos := make([]storage.ChecksumAlgorithm, 0, len(names))
	for _, name := range names {
		algo, err := storage.ParseChecksumAlgorithm(name)
		if err != nil {
			return nil, err
		}
		algos = append(algos, algo)
	}
	return h.compute(ctx, call, algos)
}

func (h *Handler) single(algo storage.ChecksumAlgorithm) fgen.OperationFunc {
	return func(ctx context.Context, call *fgen.Call) (fgen.Output, error) {
		return h.compute(ctx, call, []storage.ChecksumAlgorithm{algo})
	}
}

func (h *Handler) compute(ctx context.Context, call *fgen.Call, algos []storage.ChecksumAlgorithm) (fgen.Output, error) {
	sums, err := storage.Checksums(ctx, call.Source, call.Filename, algos)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", call.Filename, err)
	}

	out := make(map[string]string, len(sums))
	for algo, sum := range sums {
		out[string(algo)] = sum
	}

	if call.Options.Bool("sidecar", false) {
		if err := writeSidecars(ctx, call, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeSidecars(ctx context.Context, call *fgen.Call, sums map[string]string) error {
	base := path.Base(call.Filename)
	for algo, sum := range sums {
		target := call.OutputPath(base + "." + algo)
		err := call.Destination.Write(ctx, target, strings.NewReader(sum+"  "+base+"\n"),
			storage.WithContentType("text/plain"),
			storage.WithOverwrite(call.Options.Bool("overwrite", true)),
		)
		if err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}
	return nil
}
