// Package transcript models timestamped transcripts and splits them into
// overlapping, embedding-ready text segments.
package transcript

import (
	"errors"
	"strings"
)

// ErrEmptyTranscript indicates that no segments could be produced because
// the input transcript carried no usable text. Callers should treat it as an
// expected state (the video simply has nothing to index), not a failure.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Entry is a single timestamped unit of a transcript, as delivered by a
// transcript provider. Entries are ordered by Start and immutable.
type Entry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Segment is a bounded text window cut from a transcript. Start anchors it
// to the source timeline; VideoID identifies the source video.
// The text is whitespace-normalized at creation and never mutated afterwards.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	VideoID  string  `json:"video_id"`
}

// Segmenter splits transcript entries into overlapping segments. MaxChars is
// the target segment length; a segment closes once its accumulated text has
// grown past MaxChars, so the raw text is bounded by MaxChars plus one
// entry's length. OverlapChars trailing characters of each closed segment
// seed the next one, preserving context across the cut.
type Segmenter struct {
	MaxChars     int
	OverlapChars int
}

// NewSegmenter creates a Segmenter. Non-positive maxChars falls back to 500;
// overlapChars is clamped to [0, maxChars).
func NewSegmenter(maxChars, overlapChars int) *Segmenter {
	if maxChars <= 0 {
		maxChars = 500
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars - 1
	}
	return &Segmenter{MaxChars: maxChars, OverlapChars: overlapChars}
}

// Segment splits entries into ordered segments for the given video.
// An empty transcript yields an empty slice.
func (s *Segmenter) Segment(entries []Entry, videoID string) []Segment {
	if len(entries) == 0 {
		return nil
	}

	var segs []Segment
	buf := ""
	anchor := 0.0

	for _, e := range entries {
		// Close the running segment before appending the next entry once the
		// buffer has outgrown the target length. The closing segment's span
		// runs up to the entry that starts the next one.
		if buf != "" && len(buf) > s.MaxChars {
			segs = append(segs, newSegment(buf, anchor, e.Start-anchor, videoID))
			buf = tail(buf, s.OverlapChars)
			anchor = e.Start
		}
		if buf == "" {
			anchor = e.Start
		}
		buf += e.Text
	}

	if strings.TrimSpace(buf) != "" {
		segs = append(segs, newSegment(buf, anchor, flushDuration(entries), videoID))
	}
	return segs
}

// flushDuration estimates the duration of the trailing segment: the mean
// per-entry duration for multi-entry transcripts, the entry's own duration
// otherwise.
func flushDuration(entries []Entry) float64 {
	if len(entries) == 1 {
		return entries[0].Duration
	}
	var sum float64
	for _, e := range entries {
		sum += e.Duration
	}
	return sum / float64(len(entries))
}

func newSegment(text string, start, duration float64, videoID string) Segment {
	return Segment{
		Text:     normalizeWhitespace(text),
		Start:    start,
		Duration: duration,
		VideoID:  videoID,
	}
}

// tail returns the last n bytes of s, or all of s when it is shorter.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// normalizeWhitespace collapses runs of whitespace into single spaces and
// trims the ends.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
