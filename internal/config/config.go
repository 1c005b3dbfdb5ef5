// Package config holds the explicit configuration record for the service.
// There is no implicit global state: defaults are overlaid by an optional
// YAML file and then by CLIPQA_* environment variables, and the resulting
// record is passed to constructors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	Index   IndexConfig   `yaml:"index"`
	Segment SegmentConfig `yaml:"segment"`
	Answer  AnswerConfig  `yaml:"answer"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type OllamaConfig struct {
	BaseURL           string `yaml:"base_url"`
	EmbedModel        string `yaml:"embed_model"`
	AnswerModel       string `yaml:"answer_model"`
	EmbedDimension    int    `yaml:"embed_dimension"`
	MaxSequenceLength int    `yaml:"max_sequence_length"`
	BatchSize         int    `yaml:"batch_size"`
}

type IndexConfig struct {
	// Kind selects the backend: flat, ivf, or hnsw.
	Kind    string `yaml:"kind"`
	DataDir string `yaml:"data_dir"`
}

type SegmentConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

type AnswerConfig struct {
	MaxContextChars int    `yaml:"max_context_chars"`
	TopK            int    `yaml:"top_k"`
	Timeout         string `yaml:"timeout"`
	MaxRetries      int    `yaml:"max_retries"`
}

// TimeoutDuration parses the answer timeout, falling back to 30s on a
// missing or malformed value.
func (a AnswerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 4200},
		Ollama: OllamaConfig{
			BaseURL:           "http://localhost:11434",
			EmbedModel:        "nomic-embed-text",
			AnswerModel:       "mistral-nemo",
			EmbedDimension:    768,
			MaxSequenceLength: 8192,
			BatchSize:         16,
		},
		Index: IndexConfig{
			Kind:    string(vectorindex.KindFlat),
			DataDir: defaultDataDir(),
		},
		Segment: SegmentConfig{MaxChars: 500, OverlapChars: 50},
		Answer: AnswerConfig{
			MaxContextChars: 2000,
			TopK:            5,
			Timeout:         "30s",
			MaxRetries:      2,
		},
		Log: LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clipqa"
	}
	return filepath.Join(home, ".clipqa")
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is fine when path is empty; an explicit path must exist),
// then CLIPQA_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if _, err := vectorindex.ParseKind(c.Index.Kind); err != nil {
		return err
	}
	if c.Ollama.EmbedDimension <= 0 {
		return fmt.Errorf("embed dimension must be positive, got %d", c.Ollama.EmbedDimension)
	}
	if c.Segment.MaxChars <= 0 {
		return fmt.Errorf("segment max chars must be positive, got %d", c.Segment.MaxChars)
	}
	if c.Segment.OverlapChars < 0 || c.Segment.OverlapChars >= c.Segment.MaxChars {
		return fmt.Errorf("segment overlap %d must be in [0, %d)", c.Segment.OverlapChars, c.Segment.MaxChars)
	}
	if c.Answer.TopK <= 0 {
		return fmt.Errorf("answer top_k must be positive, got %d", c.Answer.TopK)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	envStr("CLIPQA_OLLAMA_BASE_URL", &cfg.Ollama.BaseURL)
	envStr("CLIPQA_EMBED_MODEL", &cfg.Ollama.EmbedModel)
	envStr("CLIPQA_ANSWER_MODEL", &cfg.Ollama.AnswerModel)
	envInt("CLIPQA_EMBED_DIMENSION", &cfg.Ollama.EmbedDimension)
	envInt("CLIPQA_BATCH_SIZE", &cfg.Ollama.BatchSize)
	envStr("CLIPQA_INDEX_KIND", &cfg.Index.Kind)
	envStr("CLIPQA_DATA_DIR", &cfg.Index.DataDir)
	envInt("CLIPQA_PORT", &cfg.Server.Port)
	envInt("CLIPQA_SEGMENT_MAX_CHARS", &cfg.Segment.MaxChars)
	envInt("CLIPQA_SEGMENT_OVERLAP_CHARS", &cfg.Segment.OverlapChars)
	envInt("CLIPQA_MAX_CONTEXT_CHARS", &cfg.Answer.MaxContextChars)
	envInt("CLIPQA_TOP_K", &cfg.Answer.TopK)
	envStr("CLIPQA_ANSWER_TIMEOUT", &cfg.Answer.Timeout)
	envInt("CLIPQA_MAX_RETRIES", &cfg.Answer.MaxRetries)
	envStr("CLIPQA_LOG_LEVEL", &cfg.Log.Level)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
