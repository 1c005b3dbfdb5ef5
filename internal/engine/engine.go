// Package engine defines the capability interfaces for the two externally
// hosted models the QA pipeline depends on: an embedding model and a text
// completion model. Consumers depend on these interfaces, never on a concrete
// client, so tests can substitute deterministic fakes.
package engine

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the model backend could not be reached.
// Adapters wrap transport failures with it so callers can errors.Is.
var ErrModelUnavailable = errors.New("model backend unavailable")

// ModelInfo describes the identity and limits of an embedding model.
type ModelInfo struct {
	Name              string `json:"name"`
	Dimension         int    `json:"dimension"`
	MaxSequenceLength int    `json:"max_sequence_length"`
}

// Embedder maps text into a fixed-dimension vector space. Implementations
// must be deterministic for a fixed model identity, and EmbedBatch must be
// equivalent to repeated Embed calls (batching exists only for throughput).
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order. batchSize
	// bounds how many texts travel in a single backend call; values <= 0
	// use an implementation default.
	EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error)

	// Dimension returns the fixed width of every vector this embedder produces.
	Dimension() int

	// ModelInfo describes the underlying model.
	ModelInfo() ModelInfo
}

// Completer generates natural-language answer text from a prompt.
type Completer interface {
	// Complete sends the system and user prompts to the completion model and
	// returns the generated text.
	Complete(ctx context.Context, system, prompt string) (string, error)
}
