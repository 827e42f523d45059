package frontier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// BoundaryStore keeps the next landmark ID in a single-integer text file.
type BoundaryStore struct {
	path string
}

var _ crawler.BoundaryStore = (*BoundaryStore)(nil)

// NewBoundaryStore returns a BoundaryStore backed by path.
func NewBoundaryStore(path string) (*BoundaryStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("boundary path is required")
	}
	return &BoundaryStore{path: path}, nil
}

// ReadBoundary returns the stored ID. A missing, empty or non-numeric file
// reads as absent.
func (b *BoundaryStore) ReadBoundary(ctx context.Context) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read boundary %s: %w", b.path, err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || id < 0 {
		return 0, false, nil
	}
	return id, true, nil
}

// WriteBoundary replaces the stored ID.
func (b *BoundaryStore) WriteBoundary(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("boundary must be >= 0, got %d", id)
	}
	if err := writeFileAtomic(b.path, []byte(strconv.Itoa(id))); err != nil {
		return fmt.Errorf("write boundary %s: %w", b.path, err)
	}
	return nil
}
