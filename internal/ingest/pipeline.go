// Package ingest turns a video's transcript into indexed, searchable vectors.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sinahosseinzadeh97/clipqa/internal/catalog"
	"github.com/sinahosseinzadeh97/clipqa/internal/engine"
	"github.com/sinahosseinzadeh97/clipqa/internal/transcript"
	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

// Catalog is the subset of the catalog store the pipeline needs.
type Catalog interface {
	Upsert(v catalog.Video) error
}

// Pipeline ingests one video at a time: segment, batch-embed, index.
// Index writes are serialized internally, so concurrent IngestVideo calls
// against a shared index are safe; embedding still runs outside the lock.
type Pipeline struct {
	segmenter *transcript.Segmenter
	embedder  engine.Embedder
	index     *vectorindex.Index
	catalog   Catalog // optional bookkeeping; nil skips it
	batchSize int
	logger    *slog.Logger

	mu sync.Mutex
}

// NewPipeline wires a Pipeline. catalog may be nil.
func NewPipeline(segmenter *transcript.Segmenter, embedder engine.Embedder, index *vectorindex.Index, cat Catalog, batchSize int) *Pipeline {
	return &Pipeline{
		segmenter: segmenter,
		embedder:  embedder,
		index:     index,
		catalog:   cat,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
}

// IngestVideo segments the transcript, embeds the segments in batches, and
// appends vectors plus metadata to the index. It returns the number of
// indexed segments. A transcript that produces no segments returns
// transcript.ErrEmptyTranscript, an expected state the caller reports
// rather than retries.
func (p *Pipeline) IngestVideo(ctx context.Context, video catalog.Video, entries []transcript.Entry) (int, error) {
	segs := p.segmenter.Segment(entries, video.ID)
	if len(segs) == 0 {
		return 0, transcript.ErrEmptyTranscript
	}

	texts := make([]string, len(segs))
	for i, seg := range segs {
		texts[i] = seg.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("embedding %d segments for video %s: %w", len(segs), video.ID, err)
	}

	meta := make([]vectorindex.Metadata, len(segs))
	for i, seg := range segs {
		meta[i] = vectorindex.Metadata{
			VideoID:    video.ID,
			VideoTitle: video.Title,
			Text:       seg.Text,
			StartTime:  seg.Start,
			Duration:   seg.Duration,
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.index.Add(vectors, meta); err != nil {
		return 0, fmt.Errorf("indexing video %s: %w", video.ID, err)
	}

	if p.catalog != nil {
		video.SegmentCount = len(segs)
		if err := p.catalog.Upsert(video); err != nil {
			return 0, fmt.Errorf("cataloging video %s: %w", video.ID, err)
		}
	}

	p.logger.Info("video ingested", "video_id", video.ID, "segments", len(segs))
	return len(segs), nil
}
