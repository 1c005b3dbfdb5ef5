package compose

import (
	"strings"
	"testing"

	"github.com/sinahosseinzadeh97/clipqa/internal/retrieval"
	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

func TestFormatTime(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{65, "01:05"},
		{3661, "61:01"},
		{59.9, "00:59"},
		{-5, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatTime(tc.seconds); got != tc.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func hitWith(title, text string, start float64) retrieval.Hit {
	return retrieval.Hit{
		Metadata: vectorindex.Metadata{
			VideoID:    "vid",
			VideoTitle: title,
			Text:       text,
			StartTime:  start,
		},
	}
}

func TestAssemble_Empty(t *testing.T) {
	a := NewAssembler(100)
	if got := a.Assemble(nil); got != "" {
		t.Fatalf("got %q, want empty context for no hits", got)
	}
}

func TestAssemble_FirstSegmentAlwaysIncluded(t *testing.T) {
	a := NewAssembler(10) // Far below the first segment's rendered size.
	hits := []retrieval.Hit{
		hitWith("Big Talk", strings.Repeat("word ", 50), 12),
		hitWith("Next", "short", 90),
	}
	got := a.Assemble(hits)
	if got == "" {
		t.Fatal("context is empty even though a candidate segment exists")
	}
	if !strings.Contains(got, "Big Talk") {
		t.Errorf("context missing the first segment: %q", got)
	}
	if strings.Contains(got, "Next") {
		t.Errorf("over-budget later segment was included: %q", got)
	}
}

func TestAssemble_DropsWholeSegmentsPastBudget(t *testing.T) {
	first := hitWith("A", "alpha alpha", 0)
	second := hitWith("B", "beta beta", 60)
	third := hitWith("C", "gamma gamma", 120)

	budget := len(renderSegment(first)) + len(renderSegment(second))
	a := NewAssembler(budget)

	got := a.Assemble([]retrieval.Hit{first, second, third})
	if !strings.Contains(got, "alpha") || !strings.Contains(got, "beta") {
		t.Fatalf("segments within budget missing: %q", got)
	}
	if strings.Contains(got, "gamma") {
		t.Fatalf("segment past budget included: %q", got)
	}
	// Mid-segment truncation never occurs: the full text of each included
	// segment survives intact.
	if !strings.Contains(got, "beta beta") {
		t.Fatalf("included segment was truncated: %q", got)
	}
}

func TestAssemble_RendersTimestamps(t *testing.T) {
	a := NewAssembler(500)
	got := a.Assemble([]retrieval.Hit{hitWith("Talk", "text", 3661)})
	if !strings.Contains(got, "61:01") {
		t.Fatalf("context missing mm:ss timestamp: %q", got)
	}
}
