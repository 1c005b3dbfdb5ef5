// Package api exposes the QA pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sinahosseinzadeh97/clipqa/internal/catalog"
	"github.com/sinahosseinzadeh97/clipqa/internal/compose"
	"github.com/sinahosseinzadeh97/clipqa/internal/retrieval"
	"github.com/sinahosseinzadeh97/clipqa/internal/transcript"
	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

const maxIngestBodySize = 10 << 20 // 10MB

// Retriever abstracts segment retrieval for the API layer.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Hit, error)
}

// Answerer produces a grounded answer from retrieved hits.
type Answerer interface {
	GenerateAnswer(ctx context.Context, question string, hits []retrieval.Hit) compose.Answer
}

// Ingestor runs transcript ingestion for one video.
type Ingestor interface {
	IngestVideo(ctx context.Context, video catalog.Video, entries []transcript.Entry) (int, error)
}

// VideoLister reads the video catalog.
type VideoLister interface {
	List() ([]catalog.Video, error)
}

// Deps holds the handler dependencies.
type Deps struct {
	Retriever Retriever
	Answerer  Answerer
	Ingestor  Ingestor
	Catalog   VideoLister
	TopK      int
	Logger    *slog.Logger
}

// NewHandler builds the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	r.Post("/ask", handleAsk(deps))
	r.Post("/ingest", handleIngest(deps))
	r.Get("/videos", handleListVideos(deps))
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AskRequest is the body for POST /ask.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Question == "" {
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}
		topK := req.TopK
		if topK <= 0 {
			topK = deps.TopK
		}

		hits, err := deps.Retriever.Retrieve(r.Context(), req.Question, topK)
		if err != nil {
			if errors.Is(err, vectorindex.ErrNotBuilt) {
				writeError(w, http.StatusConflict, "no videos have been ingested yet")
				return
			}
			deps.Logger.Error("retrieval failed", "error", err)
			writeError(w, http.StatusBadGateway, "retrieval failed")
			return
		}

		answer := deps.Answerer.GenerateAnswer(r.Context(), req.Question, hits)
		writeJSON(w, http.StatusOK, answer)
	}
}

// IngestRequest is the body for POST /ingest. Exactly one of Entries or SRT
// supplies the transcript.
type IngestRequest struct {
	VideoID string             `json:"video_id"`
	Title   string             `json:"title"`
	URL     string             `json:"url,omitempty"`
	Entries []transcript.Entry `json:"entries,omitempty"`
	SRT     string             `json:"srt,omitempty"`
}

// IngestResponse reports an accepted ingestion.
type IngestResponse struct {
	JobID    string `json:"job_id"`
	VideoID  string `json:"video_id"`
	Segments int    `json:"segments"`
	Empty    bool   `json:"empty,omitempty"`
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.VideoID == "" {
			writeError(w, http.StatusBadRequest, "video_id is required")
			return
		}
		if len(req.Entries) > 0 && req.SRT != "" {
			writeError(w, http.StatusBadRequest, "provide either entries or srt, not both")
			return
		}

		entries := req.Entries
		if req.SRT != "" {
			parsed, err := transcript.ParseSRT(req.SRT)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid SRT: "+err.Error())
				return
			}
			entries = parsed
		}

		video := catalog.Video{ID: req.VideoID, Title: req.Title, URL: req.URL}
		n, err := deps.Ingestor.IngestVideo(r.Context(), video, entries)
		if err != nil {
			if errors.Is(err, transcript.ErrEmptyTranscript) {
				// Expected state, not a failure: the video has nothing to index.
				writeJSON(w, http.StatusOK, IngestResponse{
					JobID:   uuid.NewString(),
					VideoID: req.VideoID,
					Empty:   true,
				})
				return
			}
			deps.Logger.Error("ingestion failed", "video_id", req.VideoID, "error", err)
			writeError(w, http.StatusBadGateway, "ingestion failed")
			return
		}

		writeJSON(w, http.StatusOK, IngestResponse{
			JobID:    uuid.NewString(),
			VideoID:  req.VideoID,
			Segments: n,
		})
	}
}

func handleListVideos(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		videos, err := deps.Catalog.List()
		if err != nil {
			deps.Logger.Error("listing videos failed", "error", err)
			writeError(w, http.StatusInternalServerError, "listing videos failed")
			return
		}
		if videos == nil {
			videos = []catalog.Video{}
		}
		writeJSON(w, http.StatusOK, videos)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
