package assets

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ImageRequest identifies one image to embed. Index is the owning item (or
// notes image) position and is carried through for cross-referencing.
type ImageRequest struct {
	Kind    Kind
	OwnerID string
	FileID  string
	Index   int
}

// FetchedImage is a rotated JPEG ready for embedding.
type FetchedImage struct {
	ImageRequest
	Data []byte
}

// Collector fetches and rotates images with bounded concurrency. Failures
// are logged and skipped; the output keeps request order.
type Collector struct {
	fetcher     *Fetcher
	concurrency int
	logger      *slog.Logger
	onSkip      func(*ImageProcessingError)
}

// NewCollector constructs a Collector. concurrency <= 1 fetches sequentially.
func NewCollector(fetcher *Fetcher, concurrency int, logger *slog.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fetcher: fetcher, concurrency: concurrency, logger: logger}
}

// OnSkip registers a hook invoked for every skipped image.
func (c *Collector) OnSkip(fn func(*ImageProcessingError)) {
	c.onSkip = fn
}

// Fetcher exposes the underlying fetcher.
func (c *Collector) Fetcher() *Fetcher {
	return c.fetcher
}

// Collect fetches every request. The returned slice omits failed images and
// preserves the relative order of the successful ones. A canceled ctx fails
// the whole collection instead of being reported as skipped images.
func (c *Collector) Collect(ctx context.Context, requests []ImageRequest) ([]FetchedImage, error) {
	if len(requests) == 0 {
		return nil, ctx.Err()
	}
	slots := make([]*FetchedImage, len(requests))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			data, err := c.fetchOne(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.skip(&ImageProcessingError{Kind: req.Kind, OwnerID: req.OwnerID, FileID: req.FileID, Err: err})
				return nil
			}
			slots[i] = &FetchedImage{ImageRequest: req, Data: data}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]FetchedImage, 0, len(requests))
	for _, slot := range slots {
		if slot != nil {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (c *Collector) fetchOne(ctx context.Context, req ImageRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	encoded, err := c.fetcher.FetchBase64(ctx, req.Kind, req.OwnerID, req.FileID)
	if err != nil {
		return nil, err
	}
	return c.fetcher.rotate(encoded)
}

func (c *Collector) skip(err *ImageProcessingError) {
	c.logger.Warn("skip image",
		slog.String("kind", string(err.Kind)),
		slog.String("owner_id", err.OwnerID),
		slog.String("file_id", err.FileID),
		slog.Any("error", err.Err),
	)
	if c.onSkip != nil {
		c.onSkip(err)
	}
}
