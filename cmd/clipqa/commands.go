package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sinahosseinzadeh97/clipqa/internal/compose"
	"github.com/sinahosseinzadeh97/clipqa/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the ingested videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"question": question}
		if limit > 0 {
			req["top_k"] = limit
		}

		resp, err := client.post(cmd.Context(), "/ask", req)
		if err != nil {
			return err
		}

		var answer compose.Answer
		if err := decodeJSON(resp, &answer); err != nil {
			return err
		}

		fmt.Println(answer.Answer)
		if len(answer.References) == 0 {
			return nil
		}

		fmt.Println()
		fmt.Println(colorize(colorBold, "References:"))
		for i, ref := range answer.References {
			title := ref.VideoTitle
			if title == "" {
				title = ref.VideoID
			}
			text := ref.Text
			if len(text) > 160 {
				text = text[:160] + "..."
			}
			fmt.Printf("\n%s %s [%s]\n", colorize(colorCyan, fmt.Sprintf("%d.", i+1)), title, compose.FormatTime(ref.StartTime))
			fmt.Printf("   %s\n", text)
			if ref.Link != "" {
				fmt.Printf("   %s\n", ref.Link)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Int("limit", 0, "how many segments to retrieve (default: server setting)")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a video transcript into the library",
	Long: `Ingest a video transcript into the library.

Examples:
  clipqa ingest --id dQw4w9WgXcQ --title "Concurrency Patterns" --srt ./talk.srt
  clipqa ingest --id abc123 --title "Standup" --entries ./entries.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		title, _ := cmd.Flags().GetString("title")
		url, _ := cmd.Flags().GetString("url")
		srtPath, _ := cmd.Flags().GetString("srt")
		entriesPath, _ := cmd.Flags().GetString("entries")

		if id == "" {
			return fmt.Errorf("--id is required")
		}
		if (srtPath == "") == (entriesPath == "") {
			return fmt.Errorf("exactly one of --srt or --entries is required")
		}

		req := map[string]any{"video_id": id}
		if title != "" {
			req["title"] = title
		}
		if url != "" {
			req["url"] = url
		}

		switch {
		case srtPath != "":
			data, err := os.ReadFile(srtPath)
			if err != nil {
				return fmt.Errorf("reading SRT file: %w", err)
			}
			req["srt"] = string(data)
		case entriesPath != "":
			data, err := os.ReadFile(entriesPath)
			if err != nil {
				return fmt.Errorf("reading entries file: %w", err)
			}
			req["entries"] = json.RawMessage(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest", req)
		if err != nil {
			return err
		}

		var result struct {
			JobID    string `json:"job_id"`
			VideoID  string `json:"video_id"`
			Segments int    `json:"segments"`
			Empty    bool   `json:"empty"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Empty {
			printWarning("Transcript for %s had no indexable text", result.VideoID)
			return nil
		}
		printSuccess("Ingested %s: %d segments (job %s)", result.VideoID, result.Segments, result.JobID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("id", "", "video identifier (required)")
	ingestCmd.Flags().String("title", "", "video title for display and citations")
	ingestCmd.Flags().String("url", "", "source URL of the video")
	ingestCmd.Flags().String("srt", "", "path to an SRT subtitle file")
	ingestCmd.Flags().String("entries", "", "path to a JSON array of transcript entries")
}

// --- videos ---

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List the videos in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/videos")
		if err != nil {
			return err
		}

		var videos []struct {
			ID           string    `json:"id"`
			Title        string    `json:"title"`
			SegmentCount int       `json:"segment_count"`
			IngestedAt   time.Time `json:"ingested_at"`
		}
		if err := decodeJSON(resp, &videos); err != nil {
			return err
		}

		if len(videos) == 0 {
			fmt.Println("No videos ingested yet.")
			return nil
		}

		for _, v := range videos {
			title := v.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %d segments  %s\n",
				colorize(colorCyan, v.ID),
				title,
				v.SegmentCount,
				v.IngestedAt.Format("2006-01-02"),
			)
		}
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show clipqa system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
		client := &http.Client{Timeout: 2 * time.Second}

		resp, err := client.Get(serverURL + "/health")
		serverUp := false
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				serverUp = true
				printStatus("Server", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/tags")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		}

		printStatus("Embed model", "%s (%d dims)", cfg.Ollama.EmbedModel, cfg.Ollama.EmbedDimension)
		printStatus("Answer model", "%s", cfg.Ollama.AnswerModel)
		printStatus("Index kind", "%s", cfg.Index.Kind)

		if serverUp {
			videosResp, err := client.Get(serverURL + "/videos")
			if err == nil {
				var videos []json.RawMessage
				if json.NewDecoder(videosResp.Body).Decode(&videos) == nil {
					printStatus("Videos", "%d", len(videos))
				}
				videosResp.Body.Close()
			}
		}

		printStatus("Data dir", "%s", cfg.Index.DataDir)
		return nil
	},
}
