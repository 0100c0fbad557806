// Package sink persists raw crawl results to local storage.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// FileSystemSink saves each day's pages as JSON files under a per-day
// directory, one file per pagination page: <root>/<DDMMYYYY>/<page>.json.
type FileSystemSink struct {
	root     string
	maxBytes int64
	logger   *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir.
func NewFileSystemSink(root string, maxBytes int64, logger *zap.Logger) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{
		root:     root,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Save writes every page of the result. A day with no pages (market closed)
// still gets its directory so reruns can tell "empty" from "never crawled".
func (s *FileSystemSink) Save(ctx context.Context, result crawl.Result) error {
	dir := filepath.Join(s.root, dayDir(result.Day))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create day dir %s: %w", dir, err)
	}
	for _, page := range result.Pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sink save canceled: %w", err)
		}
		if s.maxBytes > 0 && int64(len(page.Body)) > s.maxBytes {
			return fmt.Errorf("page %d for %s is %d bytes, exceeds max %d",
				page.Number, result.Day, len(page.Body), s.maxBytes)
		}
		target := filepath.Join(dir, strconv.Itoa(page.Number)+".json")
		if err := os.WriteFile(target, page.Body, 0o600); err != nil {
			return fmt.Errorf("write page %s: %w", target, err)
		}
	}
	s.logger.Debug("day result saved",
		zap.String("day", result.Day.String()),
		zap.Int("pages", len(result.Pages)),
		zap.Int("records", result.Records),
	)
	return nil
}

// dayDir renders 02.01.2021 as 02012021, the layout the original output
// used.
func dayDir(d crawl.Day) string {
	return strings.ReplaceAll(d.String(), ".", "")
}
