package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
	"github.com/JakeFAU/openrice-crawler/internal/hash/sha256"
)

// maxNameAttempts bounds how many suffixed names are tried when an artifact
// with the same name already exists.
const maxNameAttempts = 100

// Writer implements crawler.BatchWriter. The primary store is authoritative;
// the optional mirror receives the same bytes afterwards.
type Writer struct {
	primary crawler.BlobStore
	mirror  crawler.BlobStore
	hasher  crawler.Hasher
	logger  *zap.Logger
}

var _ crawler.BatchWriter = (*Writer)(nil)

// NewWriter constructs a Writer. mirror may be nil.
func NewWriter(primary, mirror crawler.BlobStore, logger *zap.Logger) (*Writer, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		primary: primary,
		mirror:  mirror,
		hasher:  sha256.New(),
		logger:  logger.Named("output"),
	}, nil
}

// WriteBatch encodes batch and stores it. An empty batch produces no
// artifact and an empty URI. A mirror failure is logged and does not fail
// the write.
func (w *Writer) WriteBatch(ctx context.Context, batch crawler.Batch) (string, error) {
	if len(batch.Records) == 0 {
		w.logger.Info("batch empty, no artifact written", zap.String("run_id", batch.RunID))
		return "", nil
	}
	data, err := EncodeBytes(batch.Records)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}
	name := FileName(batch.Start, batch.HasStart, batch.CreatedAt)
	digest, err := w.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("digest batch: %w", err)
	}

	uri, name, err := w.putPrimary(ctx, name, data)
	if err != nil {
		return "", err
	}
	w.logger.Info("artifact written",
		zap.String("run_id", batch.RunID),
		zap.String("uri", uri),
		zap.Int("records", len(batch.Records)),
		zap.Int("bytes", len(data)),
		zap.String("sha256", digest),
	)

	if w.mirror != nil {
		mirrorURI, err := w.mirror.PutObject(ctx, name, ContentType, bytes.NewReader(data))
		if err != nil {
			w.logger.Warn("artifact mirror failed", zap.String("name", name), zap.Error(err))
		} else {
			w.logger.Info("artifact mirrored", zap.String("uri", mirrorURI), zap.String("sha256", digest))
		}
	}
	return uri, nil
}

// putPrimary stores data under name, or under name_1, name_2, ... when an
// artifact with that name already exists. It returns the URI and the name used.
func (w *Writer) putPrimary(ctx context.Context, name string, data []byte) (string, string, error) {
	for n := 0; n < maxNameAttempts; n++ {
		candidate := SuffixedName(name, n)
		uri, err := w.primary.PutObject(ctx, candidate, ContentType, bytes.NewReader(data))
		if err == nil {
			return uri, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("store artifact %s: %w", candidate, err)
		}
		w.logger.Warn("artifact name taken, trying a suffixed name", zap.String("name", candidate))
	}
	return "", "", fmt.Errorf("store artifact %s: no free name after %d attempts", name, maxNameAttempts)
}
