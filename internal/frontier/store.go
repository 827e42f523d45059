// Package frontier persists the crawl frontier and the landmark boundary as
// plain files so an interrupted run can resume where it stopped.
package frontier

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// DefaultListingTemplate is the catalog listing URL for one landmark.
const DefaultListingTemplate = "https://www.openrice.com/en/hongkong/restaurants?regionId={region}&landmarkId={landmark}&tabIndex=0"

// Config locates the checkpoint and shapes generated URLs.
type Config struct {
	CheckpointPath  string
	ListingTemplate string
	RegionID        int
}

// Store is a file-backed crawler.FrontierStore. The checkpoint is a
// newline-delimited list of absolute URLs.
type Store struct {
	path     string
	template string
	regionID int
	logger   *zap.Logger
}

var _ crawler.FrontierStore = (*Store)(nil)

// NewStore validates cfg and returns a Store.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.CheckpointPath) == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if cfg.ListingTemplate == "" {
		cfg.ListingTemplate = DefaultListingTemplate
	}
	if !strings.Contains(cfg.ListingTemplate, "{landmark}") {
		return nil, fmt.Errorf("listing template must contain {landmark}")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:     cfg.CheckpointPath,
		template: cfg.ListingTemplate,
		regionID: cfg.RegionID,
		logger:   logger,
	}, nil
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// URLFor renders the listing URL for one landmark ID.
func (s *Store) URLFor(landmarkID int) string {
	return strings.NewReplacer(
		"{region}", strconv.Itoa(s.regionID),
		"{landmark}", strconv.Itoa(landmarkID),
	).Replace(s.template)
}

// Generate writes one URL per landmark ID in [r.Start, r.Start+r.Count),
// replacing any existing checkpoint.
func (s *Store) Generate(ctx context.Context, r crawler.LandmarkRange) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	urls := make([]string, 0, r.Count)
	for id := r.Start; id < r.Next(); id++ {
		urls = append(urls, s.URLFor(id))
	}
	if err := s.Write(ctx, urls); err != nil {
		return nil, err
	}
	s.logger.Info("frontier generated",
		zap.String("path", s.path),
		zap.Int("start", r.Start),
		zap.Int("count", r.Count),
	)
	return urls, nil
}

// Read returns the pending URLs in order, or an empty slice without a checkpoint.
func (s *Store) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}
	urls := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan checkpoint %s: %w", s.path, err)
	}
	return urls, nil
}

// Write atomically replaces the checkpoint with urls. An empty slice removes
// the checkpoint file.
func (s *Store) Write(ctx context.Context, urls []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(urls) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove checkpoint %s: %w", s.path, err)
		}
		return nil
	}
	var buf bytes.Buffer
	for _, u := range urls {
		buf.WriteString(u)
		buf.WriteByte('\n')
	}
	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.path, err)
	}
	return nil
}
