package compose

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sinahosseinzadeh97/clipqa/internal/engine"
	"github.com/sinahosseinzadeh97/clipqa/internal/retrieval"
)

// FallbackAnswer is returned whenever the completion backend fails. The
// prefix is load-bearing: presentation layers key off it.
const FallbackAnswer = "Sorry, I encountered an error while generating the answer. Please try again."

const systemPrompt = "You answer questions about video content. " +
	"Use only the provided transcript excerpts; if they do not contain the answer, say so."

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	initialBackoff    = 500 * time.Millisecond
)

// Reference cites one retrieved segment, in retrieval order.
type Reference struct {
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	Link       string  `json:"link"`
	Score      float32 `json:"score"`
}

// Answer is the structured result handed to presentation layers.
type Answer struct {
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}

// Composer assembles grounding context and calls the completion capability.
// Backend failures never escape GenerateAnswer: the caller always gets an
// Answer, falling back to FallbackAnswer text when generation fails.
type Composer struct {
	completer  engine.Completer
	assembler  *Assembler
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// NewComposer creates a Composer. Non-positive timeout and maxRetries use
// the defaults (30s, 2 retries).
func NewComposer(completer engine.Completer, assembler *Assembler, timeout time.Duration, maxRetries int) *Composer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &Composer{
		completer:  completer,
		assembler:  assembler,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
}

// GenerateAnswer builds the grounding context from hits, asks the completion
// model, and returns the answer with one reference per hit in input order.
// Transient completion failures are retried with doubling backoff until the
// overall timeout; after that the fallback answer fires with the references
// intact.
func (c *Composer) GenerateAnswer(ctx context.Context, question string, hits []retrieval.Hit) Answer {
	refs := buildReferences(hits)
	contextText := c.assembler.Assemble(hits)
	prompt := fmt.Sprintf("Transcript excerpts:\n%s\n\nQuestion: %s", contextText, question)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("answer generation failed, returning fallback", "error", err)
		return Answer{Question: question, Answer: FallbackAnswer, References: refs}
	}
	return Answer{Question: question, Answer: text, References: refs}
}

// complete retries the completion call with backoff. A panic inside the
// completer counts as a failure; this boundary must not propagate it.
func (c *Composer) complete(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panicked: %v", r)
		}
	}()

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		text, err = c.completer.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			return text, nil
		}
		if attempt >= c.maxRetries {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w (last attempt: %w)", ctx.Err(), err)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func buildReferences(hits []retrieval.Hit) []Reference {
	refs := make([]Reference, len(hits))
	for i, h := range hits {
		refs[i] = Reference{
			VideoID:    h.VideoID,
			VideoTitle: h.VideoTitle,
			Text:       h.Text,
			StartTime:  h.StartTime,
			Link:       WatchLink(h.VideoID, h.StartTime),
			Score:      h.Distance,
		}
	}
	return refs
}

// WatchLink is the canonical timestamped link back to the source video.
func WatchLink(videoID string, startTime float64) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%ds", videoID, int(startTime))
}
