package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSRT parses SubRip transcript text into ordered entries.
//
// An SRT cue looks like:
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
//
// Sequence numbers are skipped; multi-line cue text is joined with spaces.
// Malformed timestamp lines abort parsing with an error rather than silently
// shifting every later anchor.
func ParseSRT(text string) ([]Entry, error) {
	var entries []Entry
	var cur *Entry

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Cue sequence numbers. Purely numeric cue text is indistinguishable
		// and dropped too, which is harmless for retrieval.
		if isDigitsOnly(line) {
			continue
		}

		if strings.Contains(line, "-->") {
			parts := strings.SplitN(line, "-->", 2)
			start, err := parseSRTTime(strings.TrimSpace(parts[0]))
			if err != nil {
				return nil, fmt.Errorf("parsing cue start: %w", err)
			}
			end, err := parseSRTTime(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("parsing cue end: %w", err)
			}
			if cur != nil && cur.Text != "" {
				entries = append(entries, *cur)
			}
			cur = &Entry{Start: start, Duration: end - start}
			continue
		}

		if cur != nil {
			if cur.Text != "" {
				cur.Text += " "
			}
			cur.Text += line
			continue
		}
		// Text before any timestamp line: not valid SRT.
		return nil, fmt.Errorf("unexpected line before first cue: %q", line)
	}

	if cur != nil && cur.Text != "" {
		entries = append(entries, *cur)
	}
	return entries, nil
}

// parseSRTTime converts "HH:MM:SS,mmm" (or "HH:MM:SS.mmm") to seconds.
func parseSRTTime(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed hours in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed minutes in %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed seconds in %q", s)
	}
	return float64(h*3600+m*60) + sec, nil
}

func isDigitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
