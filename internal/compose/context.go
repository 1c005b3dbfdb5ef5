// Package compose packs retrieved segments into a bounded grounding context
// and turns completion output into answers with timestamped references.
package compose

import (
	"fmt"
	"strings"

	"github.com/sinahosseinzadeh97/clipqa/internal/retrieval"
)

const defaultMaxContextChars = 2000

// FormatTime renders seconds as zero-padded mm:ss with unbounded minutes,
// e.g. 3661 -> "61:01".
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Assembler packs ranked segments into a single grounding text under a
// character budget.
type Assembler struct {
	MaxContextChars int
}

// NewAssembler creates an Assembler. Non-positive budgets use the default.
func NewAssembler(maxContextChars int) *Assembler {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &Assembler{MaxContextChars: maxContextChars}
}

// Assemble renders hits in ranking order, appending whole segments while the
// running length stays within budget. The first segment is always included
// even when it alone exceeds the budget, so the context is never empty when
// a candidate exists. A segment that would overflow the budget ends
// assembly; segments are never cut mid-text.
func (a *Assembler) Assemble(hits []retrieval.Hit) string {
	var sb strings.Builder
	for i, h := range hits {
		block := renderSegment(h)
		if i > 0 && sb.Len()+len(block) > a.MaxContextChars {
			break
		}
		sb.WriteString(block)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderSegment(h retrieval.Hit) string {
	return fmt.Sprintf("From %q at %s:\n%s\n\n", h.VideoTitle, FormatTime(h.StartTime), h.Text)
}
