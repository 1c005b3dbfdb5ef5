package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 16

// Compile-time checks that Client satisfies both capability interfaces.
var (
	_ Embedder  = (*Client)(nil)
	_ Completer = (*Client)(nil)
)

// Client talks to a local Ollama instance over HTTP and implements both
// Embedder and Completer. The embedding dimension is part of the model
// identity and is configured up front rather than probed, so an index built
// against one model cannot silently accept vectors from another.
type Client struct {
	baseURL    string
	httpClient *http.Client

	embedModel  string
	answerModel string
	dimension   int
	maxSeqLen   int
}

// ClientConfig carries the Ollama connection and model identity settings.
type ClientConfig struct {
	BaseURL           string
	EmbedModel        string
	AnswerModel       string
	Dimension         int
	MaxSequenceLength int
}

// NewClient creates a Client for the given base URL and models.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		embedModel:  cfg.EmbedModel,
		answerModel: cfg.AnswerModel,
		dimension:   cfg.Dimension,
		maxSeqLen:   cfg.MaxSequenceLength,
	}
}

// Dimension returns the configured embedding width.
func (c *Client) Dimension() int { return c.dimension }

// ModelInfo describes the embedding model.
func (c *Client) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:              c.embedModel,
		Dimension:         c.dimension,
		MaxSequenceLength: c.maxSeqLen,
	}
}

// IsRunning reports whether the Ollama server answers GET /api/tags.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// embedRequest is the JSON body for POST /api/embed.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the JSON returned by POST /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in chunks of batchSize per backend call, running
// chunk requests concurrently with bounded parallelism. Results keep input
// order. Returns nil for empty input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the backend.

	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedOnce(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
			}
			copy(results[start:], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// embedOnce sends one /api/embed call and validates the response shape.
func (c *Client) embedOnce(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.embedModel, Input: input})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w: %w", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(result.Embeddings) != len(input) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(result.Embeddings), len(input))
	}
	for i, vec := range result.Embeddings {
		if len(vec) != c.dimension {
			return nil, fmt.Errorf("embed: vector %d has dimension %d, model %s is configured for %d",
				i, len(vec), c.embedModel, c.dimension)
		}
	}
	return result.Embeddings, nil
}

// chatMessage is a chat message in the Ollama API format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is the JSON returned by POST /api/chat (non-streaming).
type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Complete sends the system and user prompts to the answer model and returns
// the assistant's response text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	cr := chatRequest{
		Model:  c.answerModel,
		Stream: false,
	}
	if system != "" {
		cr.Messages = append(cr.Messages, chatMessage{Role: "system", Content: system})
	}
	cr.Messages = append(cr.Messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w: %w", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return result.Message.Content, nil
}
