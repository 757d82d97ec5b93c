// Package config handles scribe configuration.
// Values resolve in order: built-in defaults, optional YAML file named by SCRIBE_CONFIG,
// then environment variables (a local .env file is loaded into the environment first).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/llm"
)

// Queue policies for the clip queue between segmentation and transcription.
const (
	QueueDrop  = "drop"
	QueueBlock = "block"
)

type Config struct {
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	HTTPAddr      string `yaml:"http_addr"`
	GRPCAddr      string `yaml:"grpc_addr"`
	OutputDir     string `yaml:"output_dir"`
	LogLevel      string `yaml:"log_level"`

	// Live capture and segmentation
	InputDevice      string        `yaml:"input_device"` // empty selects the default input
	FramesPerBuffer  int           `yaml:"frames_per_buffer"`
	FrameBuffer      int           `yaml:"frame_buffer"` // bounded frame channel size
	EmitInterval     time.Duration `yaml:"emit_interval"`
	EmitFillRatio    float64       `yaml:"emit_fill_ratio"`
	VADThreshold     float64       `yaml:"vad_threshold"`
	VADWindowSeconds float64       `yaml:"vad_window_seconds"`
	QueueSize        int           `yaml:"queue_size"`
	QueuePolicy      string        `yaml:"queue_policy"`

	// Speech-to-text
	STTModel           string `yaml:"stt_model"`
	STTPrompt          string `yaml:"stt_prompt"`
	STTLanguage        string `yaml:"stt_language"`
	STTTranslate       bool   `yaml:"stt_translate"`
	STTMaxPromptTokens int    `yaml:"stt_max_prompt_tokens"`
	MaxPayloadBytes    int    `yaml:"max_payload_bytes"`

	// Offline splitting
	SplitBitrateKbps int    `yaml:"split_bitrate_kbps"`
	SplitFormat      string `yaml:"split_format"`
	SplitConcurrency int    `yaml:"split_concurrency"`

	// Summarization
	SummaryModel        string `yaml:"summary_model"`
	SummarySystemPrompt string `yaml:"summary_system_prompt"`
	TokenEncoding       string `yaml:"token_encoding"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OpenAIBaseURL:       "https://api.openai.com/v1",
		HTTPAddr:            ":8000",
		GRPCAddr:            ":50052",
		OutputDir:           "./.output",
		LogLevel:            "info",
		FramesPerBuffer:     1920,
		FrameBuffer:         100,
		EmitInterval:        30 * time.Second,
		EmitFillRatio:       0.8,
		VADThreshold:        0.02,
		VADWindowSeconds:    1.5,
		QueueSize:           8,
		QueuePolicy:         QueueDrop,
		STTModel:            "whisper-1",
		STTMaxPromptTokens:  225,
		MaxPayloadBytes:     25 * 1024 * 1024,
		SplitBitrateKbps:    64,
		SplitFormat:         "mp3",
		SplitConcurrency:    4,
		SummaryModel:        "gpt-4",
		SummarySystemPrompt: "Summarize the following text and extract the next actions.",
		TokenEncoding:       "cl100k_base",
	}
}

// Load resolves configuration from defaults, YAML and environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := Default()
	if path := os.Getenv("SCRIBE_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "failed to parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("GRPC_ADDR", c.GRPCAddr)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.InputDevice = getEnv("INPUT_DEVICE", c.InputDevice)
	c.FramesPerBuffer = getEnvInt("FRAMES_PER_BUFFER", c.FramesPerBuffer)
	c.FrameBuffer = getEnvInt("FRAME_BUFFER", c.FrameBuffer)
	c.EmitInterval = getEnvDuration("EMIT_INTERVAL", c.EmitInterval)
	c.EmitFillRatio = getEnvFloat("EMIT_FILL_RATIO", c.EmitFillRatio)
	c.VADThreshold = getEnvFloat("VAD_THRESHOLD", c.VADThreshold)
	c.VADWindowSeconds = getEnvFloat("VAD_WINDOW_SECONDS", c.VADWindowSeconds)
	c.QueueSize = getEnvInt("QUEUE_SIZE", c.QueueSize)
	c.QueuePolicy = getEnv("QUEUE_POLICY", c.QueuePolicy)

	c.STTModel = getEnv("STT_MODEL", c.STTModel)
	c.STTPrompt = getEnv("STT_PROMPT", c.STTPrompt)
	c.STTLanguage = getEnv("STT_LANGUAGE", c.STTLanguage)
	c.STTTranslate = getEnvBool("STT_TRANSLATE", c.STTTranslate)
	c.STTMaxPromptTokens = getEnvInt("STT_MAX_PROMPT_TOKENS", c.STTMaxPromptTokens)
	c.MaxPayloadBytes = getEnvInt("MAX_PAYLOAD_BYTES", c.MaxPayloadBytes)

	c.SplitBitrateKbps = getEnvInt("SPLIT_BITRATE_KBPS", c.SplitBitrateKbps)
	c.SplitFormat = getEnv("SPLIT_FORMAT", c.SplitFormat)
	c.SplitConcurrency = getEnvInt("SPLIT_CONCURRENCY", c.SplitConcurrency)

	c.SummaryModel = getEnv("SUMMARY_MODEL", c.SummaryModel)
	c.SummarySystemPrompt = getEnv("SUMMARY_SYSTEM_PROMPT", c.SummarySystemPrompt)
	c.TokenEncoding = getEnv("TOKEN_ENCODING", c.TokenEncoding)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.FramesPerBuffer <= 0 {
		problems = append(problems, "frames_per_buffer must be positive")
	}
	if c.FrameBuffer <= 0 {
		problems = append(problems, "frame_buffer must be positive")
	}
	if c.EmitInterval <= 0 {
		problems = append(problems, "emit_interval must be positive")
	}
	if c.EmitFillRatio <= 0 || c.EmitFillRatio > 1 {
		problems = append(problems, "emit_fill_ratio must be in (0,1]")
	}
	if c.VADThreshold <= 0 || c.VADThreshold > 1 {
		problems = append(problems, "vad_threshold must be in (0,1]")
	}
	if c.VADWindowSeconds <= 0 {
		problems = append(problems, "vad_window_seconds must be positive")
	}
	if c.QueueSize <= 0 {
		problems = append(problems, "queue_size must be positive")
	}
	if c.QueuePolicy != QueueDrop && c.QueuePolicy != QueueBlock {
		problems = append(problems, fmt.Sprintf("queue_policy %q is not %q or %q", c.QueuePolicy, QueueDrop, QueueBlock))
	}
	if c.STTMaxPromptTokens < 0 {
		problems = append(problems, "stt_max_prompt_tokens must not be negative")
	}
	if c.MaxPayloadBytes <= 0 {
		problems = append(problems, "max_payload_bytes must be positive")
	}
	if c.SplitBitrateKbps <= 0 {
		problems = append(problems, "split_bitrate_kbps must be positive")
	}
	if c.SplitConcurrency <= 0 {
		problems = append(problems, "split_concurrency must be positive")
	}
	if _, ok := llm.ContextSize(c.SummaryModel); !ok {
		problems = append(problems, fmt.Sprintf("summary_model %q is not a known model", c.SummaryModel))
	}

	if len(problems) > 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
